package xsdfix

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pomPath = aucPath("BuildingSync", "Facilities", "Facility", "Reports", "Report",
	"Scenarios", "Scenario", "ScenarioType", "PackageOfMeasures")

func locals(names []QName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.Local
	}
	return out
}

func TestOrderedChildren(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))

	tests := []struct {
		name string
		path []QName
		want []string
	}{
		{
			name: "root",
			path: aucPath("BuildingSync"),
			want: []string{"Programs", "Facilities"},
		},
		{
			name: "named type",
			path: aucPath("BuildingSync", "Facilities", "Facility"),
			want: []string{"Sites", "Systems", "Measures", "Reports", "Contacts", "UserDefinedFields"},
		},
		{
			name: "group reference flattened in place",
			path: pomPath,
			want: []string{"ReferenceCase", "MeasureIDs", "CalculationMethod",
				"AnnualSavingsSiteEnergy", "AnnualSavingsSourceEnergy", "AnnualSavingsCost",
				"AnnualSavingsByFuels", "AnnualPeakElectricityReduction", "SimplePayback"},
		},
		{
			name: "extension puts base particles first",
			path: aucPath("BuildingSync", "Facilities", "Facility", "Systems", "LightingSystems", "LightingSystem"),
			want: []string{"PrimaryFuel", "LampType", "BallastType", "LinkedPremises", "UserDefinedFields"},
		},
		{
			name: "choice",
			path: aucPath("BuildingSync", "Facilities", "Facility", "Reports", "Report", "Scenarios", "Scenario", "ScenarioType"),
			want: []string{"CurrentBuilding", "PackageOfMeasures"},
		},
		{
			name: "type declared after use",
			path: append(append([]QName{}, pomPath...), auc("AnnualSavingsByFuels"), auc("AnnualSavingsByFuel")),
			want: []string{"EnergyResource", "ResourceUnits", "AnnualSavingsNativeUnits"},
		},
		{
			name: "through element reference",
			path: aucPath("BuildingSync", "Facilities", "Facility", "UserDefinedFields", "UserDefinedField"),
			want: []string{"FieldName", "FieldValue"},
		},
		{
			name: "simple content has no children",
			path: aucPath("BuildingSync", "Facilities", "Facility", "Sites", "Site", "PremisesName"),
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.OrderedChildren(tt.path)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, locals(got)); diff != "" {
				t.Errorf("OrderedChildren() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderedChildrenSubstitutionGroup(t *testing.T) {
	schema, err := LoadSchemaWithImports(filepath.Join("testdata", "subst.xsd"))
	require.NoError(t, err)
	idx := NewIndex(schema)

	got, err := idx.OrderedChildren([]QName{{"urn:test:subst", "Drawing"}})
	require.NoError(t, err)
	want := []string{"Title", "Shape", "Circle", "Square", "Ellipse", "Footer"}
	if diff := cmp.Diff(want, locals(got)); diff != "" {
		t.Errorf("OrderedChildren() mismatch (-want +got):\n%s", diff)
	}

	// members resolve their own types
	got, err = idx.OrderedChildren([]QName{{"urn:test:subst", "Drawing"}, {"urn:test:subst", "Ellipse"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Color"}, locals(got))
}

func TestOrderedChildrenAcrossSchemas(t *testing.T) {
	schema, err := LoadSchemaWithImports(filepath.Join("testdata", "include", "main.xsd"))
	require.NoError(t, err)
	idx := NewIndex(schema)

	catalog := QName{"urn:test:main", "Catalog"}
	got, err := idx.OrderedChildren([]QName{catalog})
	require.NoError(t, err)
	assert.Equal(t, []QName{{"urn:test:main", "Item"}, {"urn:test:other", "Extra"}}, got)

	got, err = idx.OrderedChildren([]QName{catalog, {"urn:test:main", "Item"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Price"}, locals(got))

	got, err = idx.OrderedChildren([]QName{catalog, {"urn:test:other", "Extra"}})
	require.NoError(t, err)
	assert.Equal(t, []QName{{"urn:test:other", "Note"}}, got)
}

func TestOrderedChildrenPathNotFound(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))

	tests := []struct {
		name string
		path []QName
		step int
	}{
		{"empty", nil, 0},
		{"unknown root", aucPath("Nope"), 0},
		{"unknown step", aucPath("BuildingSync", "Facilities", "Nope", "Deeper"), 2},
		{"wrong namespace", []QName{{"urn:other", "BuildingSync"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idx.OrderedChildren(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaPathNotFound))

			var pathErr *SchemaPathError
			require.ErrorAs(t, err, &pathErr)
			assert.Equal(t, tt.step, pathErr.Step)
		})
	}
}

func TestOrderedChildrenConcurrent(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))
	want, err := idx.OrderedChildren(pomPath)
	require.NoError(t, err)

	fresh := NewIndex(idx.Schema())
	var wg sync.WaitGroup
	results := make([][]QName, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = fresh.OrderedChildren(pomPath)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestElementPathsWithAttribute(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))

	var got []string
	for _, p := range idx.ElementPathsWithAttribute("ID") {
		got = append(got, FormatPath(p))
	}

	const facility = "/BuildingSync/Facilities/Facility"
	want := []string{
		facility,
		facility + "/Sites/Site",
		facility + "/Sites/Site/Buildings/Building",
		facility + "/Sites/Site/Buildings/Building/Sections/Section",
		facility + "/Systems/LightingSystems/LightingSystem",
		facility + "/Measures/Measure",
		facility + "/Reports/Report",
		facility + "/Reports/Report/Scenarios/Scenario",
		facility + "/Reports/Report/Scenarios/Scenario/ScenarioType/PackageOfMeasures",
		facility + "/Reports/Report/Scenarios/Scenario/ResourceUses/ResourceUse",
		facility + "/Reports/Report/Scenarios/Scenario/TimeSeriesData/TimeSeries",
		facility + "/Contacts/Contact",
	}
	assert.ElementsMatch(t, want, got)
}

func TestDeclaresAttribute(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))

	ok, err := idx.DeclaresAttribute(aucPath("BuildingSync"), "version")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.DeclaresAttribute(aucPath("BuildingSync"), "ID")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = idx.DeclaresAttribute(aucPath("Nope"), "ID")
	assert.ErrorIs(t, err, ErrSchemaPathNotFound)
}

func TestRootElements(t *testing.T) {
	idx := NewIndex(loadTestSchema(t))
	assert.Equal(t, aucPath("BuildingSync"), idx.RootElements())
}
