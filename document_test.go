package xsdfix

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentBytes(t *testing.T) {
	doc := mustParse(t, `<BuildingSync xmlns="urn:x">

	<A>t</A>   <B/>
</BuildingSync>`)

	out, err := doc.Bytes()
	require.NoError(t, err)
	want := `<?xml version="1.0" encoding="UTF-8"?>
<BuildingSync xmlns="urn:x">
  <A>t</A>
  <B/>
</BuildingSync>
`
	assert.Equal(t, want, string(out))

	// serializing twice gives the same bytes and does not add a second declaration
	again, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again))
	assert.Len(t, doc.Child, 1)
}

func TestDocumentBytesKeepsDeclaration(t *testing.T) {
	doc := mustParse(t, `<?xml version="1.0"?><Root><!-- c --><A/></Root>`)
	doc.Indent = 4

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "<?xml"))
	assert.Contains(t, string(out), "\n    <!-- c -->\n    <A/>\n")
}

func TestDocumentWhitespaceLeaves(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "single space",
			xml:  "<Root>\n  <FieldValue> </FieldValue>\n</Root>",
			want: "<Root>\n  <FieldValue> </FieldValue>\n</Root>\n",
		},
		{
			name: "tab and newline",
			xml:  "<Root><A>\t\n</A><B/></Root>",
			want: "<Root>\n  <A>\t\n</A>\n  <B/>\n</Root>\n",
		},
		{
			name: "indentation between elements",
			xml:  "<Root>\n\n   <A>x</A>\n   <B/>\n</Root>",
			want: "<Root>\n  <A>x</A>\n  <B/>\n</Root>\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.xml)
			out, err := doc.Bytes()
			require.NoError(t, err)
			assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+tt.want, string(out))
		})
	}
}

func TestParseDocumentErrors(t *testing.T) {
	_, err := ParseDocument([]byte(`<!-- nothing -->`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`<Root><A></Root>`))
	assert.Error(t, err)
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "building.xml")
	require.NoError(t, os.WriteFile(path, []byte(`<Root><A>1</A></Root>`), 0o600))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	doc.Root().CreateElement("B").SetText("2")

	require.NoError(t, doc.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<B>2</B>")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	_, err = LoadDocument(filepath.Join(dir, "missing.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "out.xml"), []byte("x"), 0o644)
	assert.Error(t, err)
}

func TestElementPath(t *testing.T) {
	_, pom := pomDoc(t, `<auc:SimplePayback>1</auc:SimplePayback>`)
	assert.Equal(t, pomPath, ElementPath(pom))

	payback := pom.ChildElements()[0]
	assert.Equal(t, auc("SimplePayback"), ElementName(payback))
	assert.Equal(t, "/BuildingSync/Facilities/Facility/Reports/Report/Scenarios/Scenario/ScenarioType/PackageOfMeasures/SimplePayback",
		FormatPath(ElementPath(payback)))
}

func TestNewElement(t *testing.T) {
	tests := []struct {
		name      string
		xml       string
		wantTag   string
		wantXmlns bool
	}{
		{"prefixed binding", `<auc:BuildingSync xmlns:auc="` + aucNS + `"><auc:Facilities/></auc:BuildingSync>`, "auc:Facility", false},
		{"default binding", `<BuildingSync xmlns="` + aucNS + `"><Facilities/></BuildingSync>`, "Facility", false},
		{"unbound", `<BuildingSync><Facilities/></BuildingSync>`, "Facility", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.xml)
			parent := doc.Root().ChildElements()[0]
			e := NewElement(parent, auc("Facility"))
			assert.Equal(t, tt.wantTag, e.FullTag())
			assert.Equal(t, tt.wantXmlns, e.SelectAttr("xmlns") != nil)

			parent.AddChild(e)
			assert.Equal(t, auc("Facility"), ElementName(e))
		})
	}
}

func TestPrefixFor(t *testing.T) {
	doc := mustParse(t, `<a:Root xmlns:a="urn:a"><Child xmlns="urn:b"><a:Leaf/></Child></a:Root>`)
	leaf := doc.FindElement("//a:Leaf")
	require.NotNil(t, leaf)

	p, ok := PrefixFor(leaf, "urn:a")
	assert.True(t, ok)
	assert.Equal(t, "a", p)

	p, ok = PrefixFor(leaf, "urn:b")
	assert.True(t, ok)
	assert.Equal(t, "", p)

	_, ok = PrefixFor(leaf, "urn:c")
	assert.False(t, ok)

	assert.Equal(t, "urn:b", LookupPrefix(leaf, ""))
	assert.Equal(t, "", LookupPrefix(leaf, "zz"))
}

func TestSubElement(t *testing.T) {
	_, facility := facilityDoc(t, ``)
	udfs := SubElement(facility, "UserDefinedFields", "")
	udf := SubElement(udfs, "UserDefinedField", "")
	SubElement(udf, "FieldName", "Rebate Available")

	assert.Equal(t, "auc:UserDefinedFields", udfs.FullTag())
	assert.Equal(t, "Rebate Available", udf.SelectElement("auc:FieldName").Text())
	assert.Equal(t, aucNS, udf.NamespaceURI())
}
