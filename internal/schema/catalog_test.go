package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

type testDepartment struct {
	Id   int64 `db:"id,key"`
	Name string
}

type testAddress struct {
	Street string
	City   string `db:"town"`
}

type testPerson struct {
	Id         int64
	FirstName  string
	Salary     float64
	HiredAt    time.Time
	ExternalID uuid.UUID
	Department testDepartment
	Home       testAddress `db:"home"`
	Password   string      `db:"-"`
}

// --- Helpers ---

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	if _, err := c.RegisterStruct(testDepartment{}, "hr", "departments"); err != nil {
		t.Fatalf("register department: %v", err)
	}
	if _, err := c.RegisterStruct(&testPerson{}, "hr", "people"); err != nil {
		t.Fatalf("register person: %v", err)
	}
	return c
}

func expectConfigError(t *testing.T, err error, wantSubstr ...string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected configuration error, got nil")
	}
	if !errors.Is(err, sqlerr.Configuration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, s := range wantSubstr {
		if !strings.Contains(err.Error(), s) {
			t.Fatalf("expected error containing %q, got %q", s, err.Error())
		}
	}
}

// --- Resolution ---

func TestResolveLeaf(t *testing.T) {
	c := testCatalog(t)
	tests := map[string]string{
		"Id":            "id",
		"FirstName":     "first_name",
		"Salary":        "salary",
		"HiredAt":       "hired_at",
		"ExternalID":    "external_id",
		"Department":    "department_id",
		"Department.Id": "department_id",
		"Home.Street":   "home_street",
		"Home.City":     "home_town",
	}
	for path, want := range tests {
		got, err := c.Resolve("testPerson", path)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", path, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	c := testCatalog(t)
	first, err := c.Resolve("testPerson", "Department.Id")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Resolve("testPerson", "Department.Id")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("resolution changed: %q then %q", first, second)
	}
}

func TestResolveComposite(t *testing.T) {
	c := testCatalog(t)
	res, err := c.ResolvePath("testPerson", "Home")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsComposite() {
		t.Fatalf("expected composite resolution, got column %q", res.Column)
	}
	want := []string{"home_street", "home_town"}
	if !reflect.DeepEqual(res.Columns, want) {
		t.Fatalf("columns = %v, want %v", res.Columns, want)
	}

	_, err = c.Resolve("testPerson", "Home")
	expectConfigError(t, err, "expected one")
}

func TestResolveFailures(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Resolve("testPerson", "Department.Name")
	expectConfigError(t, err, "path: Department.Name", "type: testPerson", "beyond its key")

	_, err = c.Resolve("testPerson", "Password")
	expectConfigError(t, err, "is ignored", "path: Password")

	_, err = c.Resolve("testPerson", "Nickname")
	expectConfigError(t, err, "is not registered", "path: Nickname", "type: testPerson")

	_, err = c.Resolve("testPerson", "Salary.Amount")
	expectConfigError(t, err, "member of scalar")

	_, err = c.Resolve("Robot", "Id")
	expectConfigError(t, err, "unregistered type")
}

func TestColumnsDeclarationOrder(t *testing.T) {
	c := testCatalog(t)
	cols, err := c.Columns("testPerson")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"id", "first_name", "salary", "hired_at", "external_id",
		"department_id", "home_street", "home_town",
	}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}
}

func TestAggregateRoot(t *testing.T) {
	c := testCatalog(t)
	if !c.IsAggregateRoot("testPerson") {
		t.Fatal("testPerson should be an aggregate root")
	}
	if c.IsAggregateRoot("testAddress") {
		t.Fatal("testAddress is a value object")
	}
	s, tbl, err := c.Table("testPerson")
	if err != nil || s != "hr" || tbl != "people" {
		t.Fatalf("Table = %q, %q, %v", s, tbl, err)
	}
	if _, _, err := c.Table("testAddress"); err == nil {
		t.Fatal("expected error for value object table")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	err := c.Register(&ObjectDef{
		APIName: "T",
		Fields: []FieldDef{
			{APIName: "A", Type: FieldText, StorageColumn: Ptr("a")},
			{APIName: "A", Type: FieldText, StorageColumn: Ptr("a2")},
		},
	})
	expectConfigError(t, err, "duplicate field")
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Id":           "id",
		"ID":           "id",
		"FirstName":    "first_name",
		"DepartmentID": "department_id",
		"HTTPServer":   "http_server",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
