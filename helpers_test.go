package xsdfix

import (
	"fmt"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, xml string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(xml))
	require.NoError(t, err)
	return doc
}

// facilityDoc wraps inner in BuildingSync/Facilities/Facility.
func facilityDoc(t *testing.T, inner string) (*Document, *etree.Element) {
	t.Helper()
	doc := mustParse(t, fmt.Sprintf(`<auc:BuildingSync xmlns:auc=%q>
  <auc:Facilities>
    <auc:Facility ID="Facility-1">%s</auc:Facility>
  </auc:Facilities>
</auc:BuildingSync>`, aucNS, inner))
	facility := doc.FindElement("//auc:Facility")
	require.NotNil(t, facility)
	return doc, facility
}

// pomDoc wraps inner in a PackageOfMeasures under one Scenario.
func pomDoc(t *testing.T, inner string) (*Document, *etree.Element) {
	t.Helper()
	doc, _ := facilityDoc(t, fmt.Sprintf(`
      <auc:Reports>
        <auc:Report>
          <auc:Scenarios>
            <auc:Scenario ID="Scenario-1">
              <auc:ScenarioType>
                <auc:PackageOfMeasures>%s</auc:PackageOfMeasures>
              </auc:ScenarioType>
            </auc:Scenario>
          </auc:Scenarios>
        </auc:Report>
      </auc:Reports>`, inner))
	pom := doc.FindElement("//auc:PackageOfMeasures")
	require.NotNil(t, pom)
	return doc, pom
}

// childTags lists e's child tokens: element tags, "#comment" and "#text".
func childTags(e *etree.Element) []string {
	var out []string
	for _, t := range e.Child {
		switch c := t.(type) {
		case *etree.Element:
			out = append(out, c.Tag)
		case *etree.Comment:
			out = append(out, "#comment")
		case *etree.CharData:
			if !c.IsWhitespace() {
				out = append(out, "#text")
			}
		}
	}
	return out
}

// childSummary lists element children as Tag=text, and Tag#ID when an ID is set.
func childSummary(e *etree.Element) []string {
	var out []string
	for _, c := range e.ChildElements() {
		s := c.Tag
		if id := c.SelectAttrValue("ID", ""); id != "" {
			s += "#" + id
		}
		if text := c.Text(); text != "" {
			s += "=" + text
		}
		out = append(out, s)
	}
	return out
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(loadTestSchema(t))
}
