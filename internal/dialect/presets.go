package dialect

// Default is the dialect used for diagnostic rendering: double-quoted
// identifiers, @pN parameters, LIMIT/OFFSET paging.
func Default() Options {
	return Options{
		Name:              "default",
		ParamPrefix:       "@",
		Placeholder:       PlaceholderNamed,
		Quote:             QuoteDouble,
		TableAliasAs:      true,
		Paging:            PagingLimitOffset,
		SupportsRightJoin: true,
		SupportsFullJoin:  true,
		Concat:            ConcatFunction,
		RecursiveKeyword:  true,
	}
}

// Postgres targets PostgreSQL through pgx named arguments (@p0).
func Postgres() Options {
	o := Default()
	o.Name = "postgres"
	o.Concat = ConcatPipes
	o.SupportsReturning = true
	o.UnboundedLimit = "ALL"
	return o
}

// SQLServer targets Microsoft SQL Server.
func SQLServer() Options {
	return Options{
		Name:                "sqlserver",
		ParamPrefix:         "@",
		Placeholder:         PlaceholderNamed,
		Quote:               QuoteBracket,
		TableAliasAs:        true,
		Paging:              PagingTop,
		OffsetRequiresOrder: true,
		SupportsRightJoin:   true,
		SupportsFullJoin:    true,
		Concat:              ConcatPlus,
		FunctionNames: map[string]string{
			"LENGTH": "LEN",
		},
	}
}

// MySQL targets MySQL/MariaDB with positional parameters.
func MySQL() Options {
	return Options{
		Name:              "mysql",
		ParamPrefix:       "?",
		Placeholder:       PlaceholderQuestion,
		Quote:             QuoteBacktick,
		BackslashEscapes:  true,
		TableAliasAs:      true,
		Paging:            PagingLimitOffset,
		UnboundedLimit:    "18446744073709551615",
		SupportsRightJoin: true,
		SupportsFullJoin:  false,
		DummyTable:        "DUAL",
		Concat:            ConcatFunction,
		RecursiveKeyword:  true,
		FunctionNames: map[string]string{
			"LENGTH": "CHAR_LENGTH",
		},
	}
}

// SQLite targets SQLite. RIGHT and FULL joins are treated as unsupported.
func SQLite() Options {
	return Options{
		Name:              "sqlite",
		ParamPrefix:       "@",
		Placeholder:       PlaceholderNamed,
		Quote:             QuoteDouble,
		TableAliasAs:      true,
		Paging:            PagingLimitOffset,
		UnboundedLimit:    "-1",
		SupportsRightJoin: false,
		SupportsFullJoin:  false,
		Concat:            ConcatPipes,
		RecursiveKeyword:  true,
		SupportsReturning: true,
	}
}

// Oracle targets Oracle Database: no AS before table aliases, FROM DUAL.
func Oracle() Options {
	return Options{
		Name:              "oracle",
		ParamPrefix:       ":",
		Placeholder:       PlaceholderNamed,
		Quote:             QuoteDouble,
		TableAliasAs:      false,
		Paging:            PagingOffsetFetch,
		SupportsRightJoin: true,
		SupportsFullJoin:  true,
		DummyTable:        "DUAL",
		Concat:            ConcatPipes,
		FunctionNames: map[string]string{
			"SUBSTRING": "SUBSTR",
			"CEILING":   "CEIL",
		},
	}
}
