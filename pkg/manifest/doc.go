// Package manifest reads and writes revision manifests.
//
// # Overview
//
// A manifest is the on-disk list of migration scripts a revision map is
// built from. Each script names its parents, optional cross-branch
// dependencies and branch labels, and carries opaque upgrade and downgrade
// bodies that the graph engine never interprets.
//
// # TOML Format
//
// Files ending in .toml hold an array of revision tables:
//
//	[[revision]]
//	id = "1975ea83b712"
//	message = "create account table"
//	branch_labels = ["accounts"]
//
//	[[revision]]
//	id = "ae1027a6acf"
//	down_revisions = ["1975ea83b712"]
//	depends_on = ["billing"]
//	message = "add a column"
//	upgrade = "ALTER TABLE account ADD COLUMN last_login TIMESTAMP"
//	downgrade = "ALTER TABLE account DROP COLUMN last_login"
//
// # JSON Format
//
// Files ending in .json hold the same fields under a "revisions" array:
//
//	{
//	  "revisions": [
//	    {"id": "1975ea83b712", "message": "create account table"},
//	    {"id": "ae1027a6acf", "down_revisions": ["1975ea83b712"]}
//	  ]
//	}
//
// # Usage
//
// Build a revision map straight from a manifest file:
//
//	m := revision.NewMap(manifest.Generator(path), revision.WithLogger(logger))
//
// Append a new script with a fresh identifier:
//
//	mf, _ := manifest.Load(path)
//	_ = mf.Append(manifest.Script{ID: manifest.NewID(), DownRevisions: heads, Message: "add index"})
//	_ = mf.Save(path)
package manifest
