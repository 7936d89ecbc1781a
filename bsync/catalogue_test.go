package bsync

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflare-ai/go-xsdfix"
)

func testCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	schema, err := xsdfix.LoadSchemaWithImports(filepath.Join("..", "testdata", "bsync.xsd"))
	require.NoError(t, err)
	return New(xsdfix.NewEngine(xsdfix.NewIndex(schema)), DefaultOptions())
}

func loadBuilding(t *testing.T) *xsdfix.Document {
	t.Helper()
	doc, err := xsdfix.LoadDocument(filepath.Join("testdata", "building.xml"))
	require.NoError(t, err)
	return doc
}

// facility parses a document whose single Facility holds inner.
func facility(t *testing.T, inner string) *xsdfix.Document {
	t.Helper()
	doc, err := xsdfix.ParseDocument([]byte(fmt.Sprintf(`<auc:BuildingSync xmlns:auc=%q xmlns:xsi=%q>
  <auc:Facilities><auc:Facility>%s</auc:Facility></auc:Facilities>
</auc:BuildingSync>`, URI, xsdfix.InstanceNamespace, inner)))
	require.NoError(t, err)
	return doc
}

func tags(e *etree.Element) []string {
	var out []string
	for _, c := range e.ChildElements() {
		out = append(out, c.Tag)
	}
	return out
}

func one(t *testing.T, doc *xsdfix.Document, expr string) *etree.Element {
	t.Helper()
	e, err := query(expr).One(doc.Root())
	require.NoError(t, err)
	return e
}

func udfs(e *etree.Element) map[string]string {
	out := map[string]string{}
	container := child(e, "UserDefinedFields")
	if container == nil {
		return out
	}
	for _, udf := range container.ChildElements() {
		out[child(udf, "FieldName").Text()] = child(udf, "FieldValue").Text()
	}
	return out
}

func TestResolve(t *testing.T) {
	c := testCatalogue(t)

	tests := []struct {
		tag      string
		wantName string
		wantSkip bool
		wantErr  bool
	}{
		{tag: "StartTimeStamp", wantName: "starttimestamp"},
		{tag: "CalculationMethod", wantName: "calculationmethod"},
		{tag: "Subsections", wantName: "subsections"},
		{tag: "Report", wantName: "report"},
		{tag: "PrimaryLightingSystemType", wantName: "primarylightingsystemtype"},
		{tag: "OccupancyClassification", wantName: "occupancyclassification"},
		{tag: "Address", wantSkip: true},
		{tag: "ResourceUses", wantSkip: true},
		{tag: "Bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			fix, skip, err := c.Resolve(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.tag)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkip, skip)
			assert.Equal(t, tt.wantName, fix.Name)
		})
	}

	assert.Len(t, c.Tags(), 6)
}

func TestFixApplyWrapsErrors(t *testing.T) {
	c := testCatalogue(t)
	doc := facility(t, `<auc:Sites/>`)

	_, err := c.ATTFix().Apply(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, xsdfix.ErrMissingNode)
	assert.Contains(t, err.Error(), "fix att")
	assert.Contains(t, err.Error(), "report udfs")
}

func TestAddUDFsCreatesContainerInOrder(t *testing.T) {
	c := testCatalogue(t)
	doc := facility(t, `<auc:Sites/><auc:Contacts/>`)
	f := one(t, doc, facilityPath)

	require.NoError(t, c.addUDFs(f, []UDF{{"A", "1"}, {"B", ""}}))
	assert.Equal(t, []string{"Sites", "Contacts", "UserDefinedFields"}, tags(f))
	assert.Equal(t, map[string]string{"A": "1", "B": ""}, udfs(f))

	require.NoError(t, c.addUDFs(f, []UDF{{"C", "3"}}))
	assert.Len(t, child(f, "UserDefinedFields").ChildElements(), 3)

	require.NoError(t, c.addUDFs(f, nil))
	assert.Len(t, child(f, "UserDefinedFields").ChildElements(), 3)
}
