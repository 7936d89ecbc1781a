package bsync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix"
)

// ATT prepares a BuildingSync document for the audit template tool. The
// document is edited in place; on error it is left half-edited and must be
// discarded.
func (c *Catalogue) ATT(doc *xsdfix.Document) error {
	root := doc.Root()
	steps := []struct {
		name string
		run  func(*etree.Element) error
	}{
		{"report udfs", c.attReportUDFs},
		{"linked premises", c.attLinkedPremises},
		{"measures", c.attMeasures},
		{"unit conversions", c.attConversions},
		{"scenarios", c.attScenarios},
		{"facility and site ids", c.attFacilitySiteIDs},
		{"assessor parcel number", c.attAssessorLabel},
		{"package of measures ids", c.attPackageIDs},
		{"scenario ids", c.attScenarioIDs},
		{"annual savings cost", c.attSavingsCost},
		{"report id", c.attReportID},
		{"site identifiers", c.attSiteIdentifiers},
	}
	for _, s := range steps {
		if err := s.run(root); err != nil {
			return errors.Wrap(err, s.name)
		}
	}
	return nil
}

func (c *Catalogue) attReportUDFs(root *etree.Element) error {
	report, err := reportQuery.First(root)
	if err != nil {
		return err
	}
	return c.addUDFs(report, c.Options.ReportUDFs)
}

func (c *Catalogue) attLinkedPremises(root *etree.Element) error {
	if lpsQuery.SelectOne(root) != nil {
		return nil
	}
	building, err := buildingQuery.First(root)
	if err != nil {
		return err
	}
	id := building.SelectAttrValue("ID", "")
	if id == "" {
		return &xsdfix.MissingNodeError{Expr: buildingQuery.String() + "/@ID"}
	}
	report, err := reportQuery.First(root)
	if err != nil {
		return err
	}
	lps := xsdfix.NewElement(report, Name("LinkedPremisesOrSystem"))
	linked := xsdfix.SubElement(xsdfix.SubElement(lps, "Building", ""), "LinkedBuildingID", "")
	linked.CreateAttr("IDref", id)
	return c.Engine.InsertAndReorder(report, lps)
}

func (c *Catalogue) attMeasures(root *etree.Element) error {
	for _, measure := range measureQuery.Select(root) {
		analysis, err := c.Engine.GetOrCreate(measure, Name("MeasureSavingsAnalysis"))
		if err != nil {
			return err
		}
		if child(analysis, "FundingFromIncentives") == nil {
			funding := xsdfix.NewElement(analysis, Name("FundingFromIncentives"))
			funding.SetText("0")
			if err := c.Engine.InsertAndReorder(analysis, funding); err != nil {
				return err
			}
		}
		if err := c.addUDFs(measure, c.Options.MeasureUDFs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) attConversions(root *etree.Element) error {
	for _, fuel := range fuelQuery.Select(root) {
		resource := child(fuel, "EnergyResource")
		units := child(fuel, "ResourceUnits")
		if resource == nil || units == nil {
			continue
		}
		for _, conv := range c.Options.Conversions {
			if resource.Text() != conv.Resource || units.Text() != conv.From {
				continue
			}
			if err := convert(fuel, units, conv); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func convert(fuel, units *etree.Element, conv Conversion) error {
	value := child(fuel, "AnnualSavingsNativeUnits")
	if value == nil {
		return &xsdfix.MissingNodeError{Expr: xsdfix.FormatPath(xsdfix.ElementPath(fuel)) + "/AnnualSavingsNativeUnits"}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value.Text()), 64)
	if err != nil {
		return errors.Wrapf(err, "%s savings", conv.Resource)
	}
	units.SetText(conv.To)
	value.SetText(formatNumber(v * conv.Factor))
	return nil
}

// formatNumber renders v in the shortest form that reads back as v.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Catalogue) attScenarios(root *etree.Element) error {
	for _, scenario := range scenarioQuery.Select(root) {
		status, err := c.Engine.GetOrCreate(scenario, Name("TemporalStatus"))
		if err != nil {
			return err
		}
		status.SetText("Current")

		// baseline scenarios have no package of measures
		if pom := scenarioPOM.SelectOne(scenario); pom != nil && child(pom, "AnnualPeakElectricityReduction") == nil {
			peak := xsdfix.NewElement(pom, Name("AnnualPeakElectricityReduction"))
			peak.SetText("0")
			if err := c.Engine.InsertAndReorder(pom, peak); err != nil {
				return err
			}
		}

		if err := c.addUDFs(scenario, c.Options.ScenarioUDFs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) attFacilitySiteIDs(root *etree.Element) error {
	facility, err := facilityQuery.First(root)
	if err != nil {
		return err
	}
	facility.CreateAttr("ID", "FacilityID")

	site, err := siteQuery.First(root)
	if err != nil {
		return err
	}
	site.CreateAttr("ID", "SiteID")
	return nil
}

// attAssessorLabel turns the "Assessor parcel number" label into a custom
// identifier, which is the only form the tool accepts.
func (c *Catalogue) attAssessorLabel(root *etree.Element) error {
	id := assessorQuery.SelectOne(root)
	if id == nil {
		return nil
	}
	label := child(id, "IdentifierLabel")
	original := label.Text()
	label.SetText("Custom")
	if child(id, "IdentifierCustomName") != nil {
		return nil
	}
	name := xsdfix.NewElement(id, Name("IdentifierCustomName"))
	name.SetText(original)
	return c.Engine.InsertAndReorder(id, name)
}

func (c *Catalogue) attPackageIDs(root *etree.Element) error {
	for i, pom := range pomQuery.Select(root) {
		pom.CreateAttr("ID", fmt.Sprintf("PackageOfMeasures_ID_%d", i))
	}
	return nil
}

func (c *Catalogue) attScenarioIDs(root *etree.Element) error {
	n := 0
	for _, scenario := range scenarioQuery.Select(root) {
		if scenario.SelectAttrValue("ID", "") != "" {
			continue
		}
		scenario.CreateAttr("ID", fmt.Sprintf("Scenario_ID_%d", n))
		n++
	}
	return nil
}

func (c *Catalogue) attSavingsCost(root *etree.Element) error {
	for _, cost := range savingsCost.Select(root) {
		v, err := strconv.ParseFloat(strings.TrimSpace(cost.Text()), 64)
		if err != nil {
			return errors.Wrapf(err, "AnnualSavingsCost at %s", xsdfix.FormatPath(xsdfix.ElementPath(cost)))
		}
		if v < 0 {
			cost.SetText("0")
		}
	}
	return nil
}

func (c *Catalogue) attReportID(root *etree.Element) error {
	report, err := reportQuery.First(root)
	if err != nil {
		return err
	}
	report.CreateAttr("ID", "Report_ID_0")
	return nil
}

func (c *Catalogue) attSiteIdentifiers(root *etree.Element) error {
	if len(c.Options.SiteIdentifiers) == 0 {
		return nil
	}
	site, err := siteQuery.First(root)
	if err != nil {
		return err
	}
	ids, err := c.Engine.GetOrCreate(site, Name("PremisesIdentifiers"))
	if err != nil {
		return err
	}
	for _, p := range c.Options.SiteIdentifiers {
		id := xsdfix.NewElement(ids, Name("PremisesIdentifier"))
		xsdfix.SubElement(id, "IdentifierLabel", p.Label)
		if p.CustomName != "" {
			xsdfix.SubElement(id, "IdentifierCustomName", p.CustomName)
		}
		xsdfix.SubElement(id, "IdentifierValue", p.Value)
		if err := c.Engine.InsertAndReorder(ids, id); err != nil {
			return err
		}
	}
	return nil
}
