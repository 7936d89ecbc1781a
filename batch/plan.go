package batch

import (
	"path/filepath"
	"slices"

	"github.com/pkg/errors"

	"github.com/agentflare-ai/go-xsdfix/bsync"
	"github.com/agentflare-ai/go-xsdfix/errlog"
)

// ATTSuffix and FixedSuffix name the output directories of the two
// migrations relative to their input directory.
const (
	ATTSuffix   = "_ATT"
	FixedSuffix = "_fixed"
)

// SiblingDir returns dir with suffix appended to its last element.
func SiblingDir(dir, suffix string) string {
	return filepath.Clean(dir) + suffix
}

func listXML(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	slices.Sort(files)
	return files, nil
}

// PlanATT prepares every document in src for the audit template tool. The
// outputs go to the sibling directory src+"_ATT" under the same names.
func PlanATT(src string, cat *bsync.Catalogue) ([]Job, error) {
	files, err := listXML(src)
	if err != nil {
		return nil, err
	}
	dest := SiblingDir(src, ATTSuffix)
	jobs := make([]Job, 0, len(files))
	for _, f := range files {
		jobs = append(jobs, Job{
			Source: f,
			Dest:   filepath.Join(dest, filepath.Base(f)),
			Fixes:  []bsync.Fix{cat.ATTFix()},
		})
	}
	return jobs, nil
}

// PlanInPlace applies fixes to every document in dir, rewriting each file.
func PlanInPlace(dir string, fixes ...bsync.Fix) ([]Job, error) {
	files, err := listXML(dir)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(files))
	for _, f := range files {
		jobs = append(jobs, Job{Source: f, Dest: f, Fixes: fixes, Overwrite: true})
	}
	return jobs, nil
}

// PlanV2 turns the validation summary of the documents in src into jobs
// writing to dest. Each document reported under the schema validity
// category gets the fixers of its element tags, in the order the tags were
// first reported; every document then gets the schema location fix last.
// A tag without a fixer that is not listed as skipped fails the whole plan
// before any job exists.
func PlanV2(src, dest string, summary *errlog.Summary, cat *bsync.Catalogue) ([]Job, error) {
	perDoc := map[string][]bsync.Fix{}
	var order []string

	if validity := summary.Category(errlog.SchemaValidity); validity != nil {
		for _, el := range validity.Elements {
			tag, err := errlog.ElementTag(el.Tag)
			if err != nil {
				return nil, err
			}
			fix, skip, err := cat.Resolve(tag)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			for _, name := range el.Documents() {
				if _, seen := perDoc[name]; !seen {
					order = append(order, name)
				}
				if !slices.ContainsFunc(perDoc[name], func(f bsync.Fix) bool { return f.Name == fix.Name }) {
					perDoc[name] = append(perDoc[name], fix)
				}
			}
		}
	}

	files, err := listXML(src)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		name := filepath.Base(f)
		if _, seen := perDoc[name]; !seen {
			order = append(order, name)
			perDoc[name] = nil
		}
	}
	slices.Sort(order)

	location := cat.SchemaLocationFix()
	jobs := make([]Job, 0, len(order))
	for _, name := range order {
		jobs = append(jobs, Job{
			Source:    filepath.Join(src, name),
			Dest:      filepath.Join(dest, name),
			Fixes:     append(slices.Clip(perDoc[name]), location),
			Overwrite: true,
		})
	}
	return jobs, nil
}
