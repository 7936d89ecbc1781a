package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	schemaPath, configPath, workers, dryRun, verbose, noColor = "", "", 0, false, false, true
	reprocess = false
	errorsOut, errorsFormat, errorsMaxFiles = "", "text", 5
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--no-color"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestErrorsCommand(t *testing.T) {
	reports := filepath.Join("..", "..", "errlog", "testdata", "reports")

	out, err := execute(t, "errors", reports)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation Error Summary")
	assert.Contains(t, out, "error[E201]")

	out, err = execute(t, "errors", reports, "--format", "json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	path := filepath.Join(t.TempDir(), "summary.yaml")
	_, err = execute(t, "errors", reports, "--format", "yaml", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Schemas validity error")

	_, err = execute(t, "errors", reports, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestSortCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.xml")
	doc := `<auc:BuildingSync xmlns:auc="http://buildingsync.net/schemas/bedes-auc/2019">
  <auc:Facilities><auc:Facility><auc:Reports><auc:Report><auc:Scenarios><auc:Scenario>
    <auc:ScenarioType><auc:PackageOfMeasures>
      <auc:SimplePayback>3</auc:SimplePayback>
      <auc:MeasureIDs/>
    </auc:PackageOfMeasures></auc:ScenarioType>
  </auc:Scenario></auc:Scenarios></auc:Report></auc:Reports></auc:Facility></auc:Facilities>
</auc:BuildingSync>`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	schema := filepath.Join("..", "..", "testdata", "bsync.xsd")

	out, err := execute(t, "sort", path, "//auc:PackageOfMeasures", "--schema", schema, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "--- "+path)
	assert.Contains(t, out, "1 processed, 0 skipped, 0 failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))

	out, err = execute(t, "sort", path, "//auc:Measure", "--schema", schema)
	assert.ErrorContains(t, err, "1 of 1 documents failed")
	assert.Contains(t, out, "F\n")
}

func TestV2RefusesUnknownTags(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	reports := filepath.Join(root, "errors")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.MkdirAll(reports, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reports, "a.xml"),
		[]byte("/d/a.xml:3: element FloorAreas: Schemas validity error : Element 'FloorAreas': This element is not expected.\n"), 0o644))

	_, err := execute(t, "v2", data, reports, "--schema", filepath.Join("..", "..", "testdata", "bsync.xsd"))
	assert.ErrorContains(t, err, "FloorAreas")
	assert.NoDirExists(t, data+"_fixed")
}
