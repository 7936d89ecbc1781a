// Package bsync holds the BuildingSync fix catalogue: the audit template
// tool preparation, the fixers for BuildingSync 2.0 validation errors and
// the required-ID filler. Every structural edit goes through an
// xsdfix.Engine so the touched parents stay in schema order.
package bsync

import (
	"github.com/beevik/etree"

	"github.com/agentflare-ai/go-xsdfix"
)

const (
	// URI is the BuildingSync (BEDES/auc) target namespace.
	URI = "http://buildingsync.net/schemas/bedes-auc/2019"
	// SchemaURL is the published BuildingSync 2.0 schema.
	SchemaURL = "https://raw.githubusercontent.com/BuildingSync/schema/v2.0/BuildingSync.xsd"
	// Prefix is the canonical prefix for URI.
	Prefix = "auc"
)

// Namespaces is the canonical binding set for BuildingSync documents.
var Namespaces = xsdfix.Namespaces{
	Primary:        xsdfix.Binding{Prefix: Prefix, URI: URI},
	Instance:       xsdfix.Binding{Prefix: "xsi", URI: xsdfix.InstanceNamespace},
	SchemaLocation: URI + " " + SchemaURL,
}

var prefixes = map[string]string{Prefix: URI}

// Name returns the BuildingSync element name local.
func Name(local string) xsdfix.QName {
	return xsdfix.QName{Namespace: URI, Local: local}
}

func query(expr string) *xsdfix.Query {
	return xsdfix.MustCompileQuery(expr, prefixes)
}

const (
	facilityPath = "/auc:BuildingSync/auc:Facilities/auc:Facility"
	sitePath     = facilityPath + "/auc:Sites/auc:Site"
	buildingPath = sitePath + "/auc:Buildings/auc:Building"
	reportPath   = facilityPath + "/auc:Reports/auc:Report"
	scenarioPath = reportPath + "/auc:Scenarios/auc:Scenario"
	pomPath      = scenarioPath + "/auc:ScenarioType/auc:PackageOfMeasures"
)

var (
	facilityQuery  = query(facilityPath)
	siteQuery      = query(sitePath)
	buildingQuery  = query(buildingPath)
	reportQuery    = query(reportPath)
	lpsQuery       = query(reportPath + "/auc:LinkedPremisesOrSystem")
	measureQuery   = query(facilityPath + "/auc:Measures/auc:Measure")
	scenarioQuery  = query(scenarioPath)
	pomQuery       = query(pomPath)
	scenarioPOM    = query("auc:ScenarioType/auc:PackageOfMeasures")
	fuelQuery      = query(pomPath + "/auc:AnnualSavingsByFuels/auc:AnnualSavingsByFuel")
	savingsCost    = query(pomPath + "/auc:AnnualSavingsCost")
	assessorQuery  = query(buildingPath + `/auc:PremisesIdentifiers/auc:PremisesIdentifier[auc:IdentifierLabel="Assessor parcel number"]`)
	legacyReport   = query(facilityPath + "/auc:Report")
	lightingSystem = query(facilityPath + "/auc:Systems/auc:LightingSystems/auc:LightingSystem")
)

// child returns e's first child named local in the BuildingSync namespace.
func child(e *etree.Element, local string) *etree.Element {
	name := Name(local)
	for _, c := range e.ChildElements() {
		if xsdfix.ElementName(c) == name {
			return c
		}
	}
	return nil
}
