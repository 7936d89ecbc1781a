package xsdfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aucPrefixes = map[string]string{"auc": aucNS}

const fuelsXML = `<BuildingSync xmlns="` + aucNS + `">
  <Facilities><Facility><Reports><Report><Scenarios><Scenario ID="S1">
    <ScenarioType><PackageOfMeasures>
      <AnnualSavingsByFuels>
        <AnnualSavingsByFuel>
          <EnergyResource>Electricity</EnergyResource>
          <ResourceUnits>kBtu</ResourceUnits>
          <AnnualSavingsNativeUnits>100</AnnualSavingsNativeUnits>
        </AnnualSavingsByFuel>
        <AnnualSavingsByFuel>
          <EnergyResource>Natural gas</EnergyResource>
          <ResourceUnits>kBtu</ResourceUnits>
          <AnnualSavingsNativeUnits>50</AnnualSavingsNativeUnits>
        </AnnualSavingsByFuel>
        <AnnualSavingsByFuel>
          <EnergyResource>Electricity</EnergyResource>
          <ResourceUnits>kWh</ResourceUnits>
          <AnnualSavingsNativeUnits>5</AnnualSavingsNativeUnits>
        </AnnualSavingsByFuel>
      </AnnualSavingsByFuels>
    </PackageOfMeasures></ScenarioType>
  </Scenario><Scenario ID="S2"/></Scenarios></Report></Reports></Facility></Facilities>
</BuildingSync>`

func TestQuerySelect(t *testing.T) {
	doc := mustParse(t, fuelsXML)

	tests := []struct {
		name string
		expr string
		want int
	}{
		{"absolute path", "/auc:BuildingSync/auc:Facilities/auc:Facility", 1},
		{"descendant", "//auc:Scenario", 2},
		{"attribute predicate", `//auc:Scenario[@ID="S2"]`, 1},
		{"child value predicate", `//auc:AnnualSavingsByFuel[auc:EnergyResource="Electricity"]`, 2},
		{"text predicate", `//auc:AnnualSavingsByFuel[auc:EnergyResource="Electricity"]/auc:ResourceUnits[text()="kBtu"]`, 1},
		{"wrong namespace", "//o:Scenario", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := CompileQuery(tt.expr, map[string]string{"auc": aucNS, "o": "urn:other"})
			require.NoError(t, err)
			assert.Len(t, q.Select(doc.Root()), tt.want)
		})
	}
}

func TestQueryRelative(t *testing.T) {
	doc := mustParse(t, fuelsXML)
	fuel := MustCompileQuery(`//auc:AnnualSavingsByFuel[auc:ResourceUnits="kWh"]`, aucPrefixes).SelectOne(doc.Root())
	require.NotNil(t, fuel)

	value, err := MustCompileQuery("auc:AnnualSavingsNativeUnits", aucPrefixes).One(fuel)
	require.NoError(t, err)
	assert.Equal(t, "5", value.Text())

	parent := MustCompileQuery("..", aucPrefixes).SelectOne(fuel)
	require.NotNil(t, parent)
	assert.Equal(t, "AnnualSavingsByFuels", parent.Tag)

	sibling := MustCompileQuery("preceding-sibling::auc:AnnualSavingsByFuel[1]/auc:EnergyResource", aucPrefixes).SelectOne(fuel)
	require.NotNil(t, sibling)
	assert.Equal(t, "Natural gas", sibling.Text())
}

func TestQueryOne(t *testing.T) {
	doc := mustParse(t, fuelsXML)

	_, err := MustCompileQuery("//auc:Scenario", aucPrefixes).One(doc.Root())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingNode)
	assert.Contains(t, err.Error(), "found 2")

	_, err = MustCompileQuery("//auc:Building", aucPrefixes).One(doc.Root())
	assert.ErrorIs(t, err, ErrMissingNode)

	_, err = MustCompileQuery("//auc:Building", aucPrefixes).First(doc.Root())
	assert.ErrorIs(t, err, ErrMissingNode)

	s, err := MustCompileQuery("//auc:Scenario", aucPrefixes).First(doc.Root())
	require.NoError(t, err)
	assert.Equal(t, "S1", s.SelectAttrValue("ID", ""))
}

func TestQueryAfterMutation(t *testing.T) {
	engine := NewEngine(testIndex(t))
	_, facility := facilityDoc(t, `<auc:Reports/>`)

	sites, err := engine.GetOrCreate(facility, auc("Sites"))
	require.NoError(t, err)
	require.NoError(t, engine.InsertAndReorder(sites, NewElement(sites, auc("Site"))))

	got := MustCompileQuery("/auc:BuildingSync/auc:Facilities/auc:Facility/*", aucPrefixes).Select(facility)
	require.Len(t, got, 2)
	assert.Equal(t, "Sites", got[0].Tag)
	assert.Equal(t, "Reports", got[1].Tag)

	site := MustCompileQuery("auc:Sites/auc:Site", aucPrefixes).SelectOne(facility)
	assert.NotNil(t, site)
}

func TestPathQuery(t *testing.T) {
	doc := mustParse(t, fuelsXML)
	q, err := PathQuery(aucPath("BuildingSync", "Facilities", "Facility", "Reports", "Report", "Scenarios", "Scenario"))
	require.NoError(t, err)
	assert.Len(t, q.Select(doc.Root()), 2)

	_, err = CompileQuery("//auc:[", aucPrefixes)
	assert.Error(t, err)
}
