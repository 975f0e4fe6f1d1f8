package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleApp() *AppSpec {
	return &AppSpec{
		Version:  "1.0",
		Metadata: Metadata{AppID: "crm"},
		Forms: []FormSpec{
			NewForm("customer", "Customer", "customer",
				NewField("code", FieldTypeText, PrimaryKey(), WithSize(20)),
				NewField("country", FieldTypeSelect, WithOptions(SelectOption{Value: "MY"}, SelectOption{Value: "SG", Label: "Singapore"})),
			),
			NewForm("invoice", "Invoice", "invoice",
				NewField("number", FieldTypeText, Required()),
				NewField("customer", FieldTypeForeignKey, WithReference("customer", "code", "")),
				NewField("issued_on", FieldTypeDate, WithDefault(Symbolic(DefaultCurrentDate))),
			),
		},
	}
}

func TestNewAppSpec_NormalizesDerivedAttributes(t *testing.T) {
	src := sampleApp()
	app, err := NewAppSpec(src.Version, src.Metadata, src.Forms...)
	if err != nil {
		t.Fatalf("NewAppSpec: %v", err)
	}
	if app.Metadata.AppName != "crm" {
		t.Fatalf("expected app_name to default to app_id, got %q", app.Metadata.AppName)
	}
	customer, _ := app.Form("customer")
	country, _ := customer.Field("country")
	want := []SelectOption{{Value: "MY", Label: "MY"}, {Value: "SG", Label: "Singapore"}}
	if diff := cmp.Diff(want, country.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if country.Label != "Country" {
		t.Fatalf("expected title-cased label, got %q", country.Label)
	}
	invoice, _ := app.Form("invoice")
	ref, _ := invoice.Field("customer")
	if ref.References.LabelField != "code" {
		t.Fatalf("expected label_field to default to field, got %q", ref.References.LabelField)
	}
	issued, _ := invoice.Field("issued_on")
	if issued.Label != "Issued On" {
		t.Fatalf("unexpected label %q", issued.Label)
	}
}

func TestNewAppSpec_CollectsEveryViolation(t *testing.T) {
	_, err := NewAppSpec("", Metadata{}, FormSpec{
		ID:    "1bad",
		Table: "t",
		Fields: []FieldSpec{
			{ID: "a", Type: FieldTypeText},
			{ID: "a", Type: FieldTypeNumber, Size: -1},
			{ID: "fk", Type: FieldTypeForeignKey},
			{ID: "sel", Type: FieldTypeSelect, Options: []SelectOption{{Value: "x"}}, References: &ForeignKeyRef{Form: "f", Field: "id"}},
			{ID: "txt", Type: FieldTypeText, Options: []SelectOption{{Value: "x"}}},
		},
		Indexes: []IndexSpec{{Fields: []string{"missing"}}},
	})
	var verr *SchemaValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected SchemaValidationError, got %T (%v)", err, err)
	}

	got := make(map[string]string)
	for _, issue := range verr.Issues {
		got[issue.Path] = issue.Rule
	}
	want := map[string]string{
		"version":                       RuleRequired,
		"metadata.app_id":               RuleRequired,
		"forms[0].id":                   RulePattern,
		"forms[0].name":                 RuleRequired,
		"forms[0].fields[1].id":         RuleDuplicate,
		"forms[0].fields[1].size":       RuleRange,
		"forms[0].fields[2].references": RuleRequired,
		"forms[0].fields[3]":            RuleInvariant,
		"forms[0].fields[4]":            RuleInvariant,
		"forms[0].indexes[0].fields[0]": RuleReference,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "(10 issues)") {
		t.Fatalf("expected issue count in message, got %q", err.Error())
	}
}

func TestValidate_VersionPattern(t *testing.T) {
	for _, v := range []string{"1", "1.2", "v1.2.3", "2.0.0-rc.1", "1.0+build5"} {
		app := sampleApp()
		app.Version = v
		if err := app.Validate(); err != nil {
			t.Errorf("version %q rejected: %v", v, err)
		}
	}
	for _, v := range []string{"one", "1.2.3.4", "v", "1..2"} {
		app := sampleApp()
		app.Version = v
		issues, _ := AsIssues(app.Validate())
		if len(issues) != 1 || issues[0].Rule != RulePattern {
			t.Errorf("version %q: expected one pattern issue, got %v", v, issues)
		}
	}
}

func TestValidate_DuplicateForms(t *testing.T) {
	app := sampleApp()
	app.Forms = append(app.Forms, app.Forms[0].Clone())
	issues, ok := AsIssues(app.Validate())
	if !ok {
		t.Fatalf("expected issues")
	}
	if issues[0].Path != "forms[2].id" || issues[0].Rule != RuleDuplicate {
		t.Fatalf("unexpected issue %+v", issues[0])
	}
}

func TestValidate_EmptyFormsAndFields(t *testing.T) {
	app := &AppSpec{Version: "1", Metadata: Metadata{AppID: "a"}, Forms: []FormSpec{}}
	issues, _ := AsIssues(app.Validate())
	if len(issues) != 1 || issues[0].Path != "forms" {
		t.Fatalf("expected forms issue, got %v", issues)
	}

	app.Forms = []FormSpec{{ID: "f", Name: "F", Table: "f"}}
	issues, _ = AsIssues(app.Validate())
	if len(issues) != 1 || issues[0].Path != "forms[0].fields" {
		t.Fatalf("expected fields issue, got %v", issues)
	}
}

func TestUnresolvedReferences(t *testing.T) {
	app := sampleApp()
	app.Forms[1].Fields[1].References.Form = "client"

	if err := app.Validate(); err != nil {
		t.Fatalf("unknown reference should be advisory by default: %v", err)
	}
	warnings := UnresolvedReferences(app)
	if len(warnings) != 1 || warnings[0].Path != "forms[1].fields[1].references.form" {
		t.Fatalf("unexpected warnings %v", warnings)
	}

	err := app.ValidateWith(CheckOptions{StrictReferences: true})
	issues, ok := AsIssues(err)
	if !ok || len(issues) != 1 || issues[0].Rule != RuleReference {
		t.Fatalf("expected strict reference violation, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	app := sampleApp()
	clone := app.Clone()
	clone.Forms[0].Fields[1].Options[0].Value = "changed"
	clone.Forms[1].Fields[1].References.Form = "changed"
	if app.Forms[0].Fields[1].Options[0].Value != "MY" {
		t.Fatalf("options shared between clones")
	}
	if app.Forms[1].Fields[1].References.Form != "customer" {
		t.Fatalf("references shared between clones")
	}
}

func TestIssuesError(t *testing.T) {
	iss := Issues{
		{Path: "a", Rule: RuleRequired},
		{Path: "b", Rule: RulePattern},
		{Path: "c", Rule: RuleDuplicate},
		{Path: "d", Rule: RuleRange},
	}
	want := "required at a; pattern at b; duplicate at c; ... (total 4)"
	if got := iss.Error(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := (Issue{Path: "x", Message: "boom"}).String(); got != "x: boom" {
		t.Fatalf("unexpected issue string %q", got)
	}
}

func TestErrorMessagesNameTheInput(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&NotFoundError{Path: "forms.yaml"}, "schema: input not found: forms.yaml"},
		{NewParseError("forms.md", 12, "expected %d cells, got %d", 3, 2), "schema: parse forms.md:12: expected 3 cells, got 2"},
		{&ArgumentError{Input: "a.csv", Arg: "app_id", Reason: "is required"}, "schema: a.csv: argument app_id: is required"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got %q want %q", got, tc.want)
		}
	}
}
