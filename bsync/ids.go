package bsync

import (
	"github.com/agentflare-ai/go-xsdfix"
)

// AddRequiredIDs gives every element whose schema type declares an ID
// attribute, and that has none, a generated one.
func (c *Catalogue) AddRequiredIDs(doc *xsdfix.Document) error {
	queries, names, err := c.idQueries()
	if err != nil {
		return err
	}
	root := doc.Root()
	for i, q := range queries {
		for _, e := range q.Select(root) {
			if e.SelectAttr("ID") == nil {
				e.CreateAttr("ID", c.NewID(names[i]))
			}
		}
	}
	return nil
}

// idQueries compiles one absolute query per schema path that carries an ID.
func (c *Catalogue) idQueries() ([]*xsdfix.Query, []string, error) {
	c.idOnce.Do(func() {
		for _, path := range c.Engine.Index.ElementPathsWithAttribute("ID") {
			q, err := xsdfix.PathQuery(path)
			if err != nil {
				c.idErr = err
				return
			}
			c.idPaths = append(c.idPaths, q)
			c.idNames = append(c.idNames, path[len(path)-1].Local)
		}
	})
	return c.idPaths, c.idNames, c.idErr
}
