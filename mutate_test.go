package xsdfix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndReorder(t *testing.T) {
	idx := testIndex(t)
	engine := NewEngine(idx)

	tests := []struct {
		name   string
		inner  string
		insert string
		want   []string
	}{
		{
			name:   "into the middle",
			inner:  `<auc:Sites/><auc:Reports/><auc:UserDefinedFields/>`,
			insert: "Measures",
			want:   []string{"Sites", "Measures", "Reports", "UserDefinedFields"},
		},
		{
			name:   "first position",
			inner:  `<auc:Reports/>`,
			insert: "Sites",
			want:   []string{"Sites", "Reports"},
		},
		{
			name:   "last position",
			inner:  `<auc:Sites/>`,
			insert: "UserDefinedFields",
			want:   []string{"Sites", "UserDefinedFields"},
		},
		{
			name:   "empty parent",
			inner:  ``,
			insert: "Contacts",
			want:   []string{"Contacts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, facility := facilityDoc(t, tt.inner)
			child := NewElement(facility, auc(tt.insert))
			require.NoError(t, engine.InsertAndReorder(facility, child))
			assert.Equal(t, tt.want, childTags(facility))
			assert.Same(t, facility, child.Parent())
			assert.Equal(t, aucNS, child.NamespaceURI())
		})
	}
}

func TestInsertAndReorderPreservesOtherOrder(t *testing.T) {
	engine := NewEngine(testIndex(t))
	_, pom := pomDoc(t, `<auc:AnnualSavingsSourceEnergy>10</auc:AnnualSavingsSourceEnergy>
		<auc:AnnualSavingsSourceEnergy>7</auc:AnnualSavingsSourceEnergy>
		<auc:SimplePayback>3</auc:SimplePayback>`)

	aper := NewElement(pom, auc("AnnualPeakElectricityReduction"))
	aper.SetText("0")
	require.NoError(t, engine.InsertAndReorder(pom, aper))
	assert.Equal(t, []string{
		"AnnualSavingsSourceEnergy=10",
		"AnnualSavingsSourceEnergy=7",
		"AnnualPeakElectricityReduction=0",
		"SimplePayback=3",
	}, childSummary(pom))
}

func TestInsertAndReorderErrors(t *testing.T) {
	engine := NewEngine(testIndex(t))

	_, facility := facilityDoc(t, `<auc:Sites/>`)
	err := engine.InsertAndReorder(facility, NewElement(facility, auc("Bogus")))
	assert.ErrorIs(t, err, ErrUnknownChildElement)

	doc := mustParse(t, `<Other/>`)
	err = engine.InsertAndReorder(doc.Root(), NewElement(doc.Root(), QName{Local: "Child"}))
	assert.ErrorIs(t, err, ErrSchemaPathNotFound)
}

func TestGetOrCreate(t *testing.T) {
	engine := NewEngine(testIndex(t))
	_, facility := facilityDoc(t, `<auc:Sites/><auc:UserDefinedFields><auc:UserDefinedField/></auc:UserDefinedFields>`)

	udfs, err := engine.GetOrCreate(facility, auc("UserDefinedFields"))
	require.NoError(t, err)
	assert.Len(t, udfs.ChildElements(), 1, "existing container returned")

	reports, err := engine.GetOrCreate(facility, auc("Reports"))
	require.NoError(t, err)
	assert.Equal(t, "Reports", reports.Tag)
	assert.Equal(t, []string{"Sites", "Reports", "UserDefinedFields"}, childTags(facility))

	again, err := engine.GetOrCreate(facility, auc("Reports"))
	require.NoError(t, err)
	assert.Same(t, reports, again)
}

func TestSortAndDedupe(t *testing.T) {
	engine := NewEngine(testIndex(t))
	_, pom := pomDoc(t, `<auc:AnnualSavingsSourceEnergy>10</auc:AnnualSavingsSourceEnergy>
		<auc:SimplePayback>3</auc:SimplePayback>
		<auc:AnnualSavingsSourceEnergy>7</auc:AnnualSavingsSourceEnergy>
		<auc:SimplePayback>3</auc:SimplePayback>
		<auc:CalculationMethod><auc:Modeled/></auc:CalculationMethod>`)

	require.NoError(t, engine.SortAndDedupe(pom))
	assert.Equal(t, []string{"CalculationMethod", "AnnualSavingsSourceEnergy=7", "SimplePayback=3"}, childSummary(pom))
}

func TestRename(t *testing.T) {
	engine := NewEngine(testIndex(t))
	doc, _ := facilityDoc(t, `<auc:Reports><auc:Report><auc:Scenarios><auc:Scenario>
		<auc:ScenarioName>StartTimeStamp is mentioned here</auc:ScenarioName>
		<auc:TimeSeriesData><auc:TimeSeries>
			<auc:StartTimeStamp>2019-01-01T00:00:00</auc:StartTimeStamp>
			<auc:EndTimeStamp>2019-02-01T00:00:00</auc:EndTimeStamp>
		</auc:TimeSeries></auc:TimeSeriesData>
	</auc:Scenario></auc:Scenarios></auc:Report></auc:Reports>`)

	n := engine.Rename(doc.Root(),
		func(q QName) bool { return q.Namespace == aucNS && strings.HasSuffix(q.Local, "TimeStamp") },
		func(local string) string { return strings.TrimSuffix(local, "TimeStamp") + "Timestamp" })
	assert.Equal(t, 2, n)

	ts := doc.FindElement("//auc:TimeSeries")
	require.NotNil(t, ts)
	assert.Equal(t, []string{"StartTimestamp", "EndTimestamp"}, childTags(ts))
	assert.Equal(t, "StartTimeStamp is mentioned here", doc.FindElement("//auc:ScenarioName").Text())
}
