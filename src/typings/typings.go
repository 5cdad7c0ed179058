// Package typings derives client type descriptors from a version's model
// forest. For every database it emits a flat projection (dotted-path member
// names), a hierarchical projection (literally nested object members) and
// the set of full-text-searchable fields, as TypeScript declaration source
// consumed by attached developer tooling.
package typings

import (
	"fmt"
	"strings"

	"modelforge/src/models"
)

// ArtifactPath is the generated-file path the declarations are published
// under.
const ArtifactPath = "node_modules/@modelforge/server/dist/utils/specifics.d.ts"

const preamble = `export type ReferenceMarker = { _typeTag: "_RefMarker" };
export type ReferenceFieldType =
    | (string & ReferenceMarker)
    | (number & ReferenceMarker);

export type GenericJSON = {
    [key: string]:
        | string
        | number
        | boolean
        | null
        | GenericJSON
        | GenericJSONArray;
};

export type GenericJSONArray = GenericJSON[];
export type JSON = GenericJSON | GenericJSONArray[];`

// ForVersion renders the typings of a version as a map of generated-artifact
// path to source text. Databases carry their models in Database.Models. A
// version with zero databases or models yields a valid "no models"
// projection.
func ForVersion(dbs []models.Database) map[string]string {
	return map[string]string{ArtifactPath: Generate(dbs)}
}

// Generate renders the full declaration source for the given databases.
func Generate(dbs []models.Database) string {
	return preamble + "\n" + databaseTypings(dbs)
}

// fieldNode and modelNode wrap the stored entities with the projection state
// computed in one preprocessing pass: flat names, searchability and resolved
// sub-model targets.
type fieldNode struct {
	field      *models.Field
	flatName   string
	searchable bool
	target     *modelNode
}

type modelNode struct {
	model  *models.Model
	fields []*fieldNode
}

func databaseTypings(dbs []models.Database) string {
	if len(dbs) == 0 {
		return strings.Join([]string{
			"export type DatabaseName = string;",
			"export type ModelList<D extends DatabaseName> = string;",
			"export type ModelType<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = never;",
			"export type ModelTypeHierarchy<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = never;",
			"export type FTSFields<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = never;",
		}, "\n")
	}

	forests := make([][]*modelNode, len(dbs))
	for i := range dbs {
		forests[i] = buildForest(dbs[i].Models)
	}

	names := make([]string, len(dbs))
	for i := range dbs {
		names[i] = fmt.Sprintf("%q", dbs[i].Name)
	}
	databaseNames := fmt.Sprintf("export type DatabaseName = %s;", strings.Join(names, " | "))

	var modelList strings.Builder
	modelList.WriteString("export type ModelList<D extends DatabaseName> =")
	for i := range dbs {
		var top []string
		for _, node := range forests[i] {
			if node.model.IsTopLevel() {
				top = append(top, fmt.Sprintf("%q", node.model.Name))
			}
		}
		choice := "string"
		if len(top) > 0 {
			choice = strings.Join(top, " | ")
		}
		fmt.Fprintf(&modelList, "\nD extends %q ? %s :", dbs[i].Name, choice)
	}
	modelList.WriteString("\nstring;")

	flat := make([]string, len(dbs))
	hierarchy := make([]string, len(dbs))
	fts := make([]string, len(dbs))
	for i := range dbs {
		flat[i] = databaseType(dbs[i].Name, forests[i], true)
		hierarchy[i] = databaseType(dbs[i].Name, forests[i], false)
		fts[i] = databaseFTS(dbs[i].Name, forests[i])
	}

	flatTypings := fmt.Sprintf(
		"export type ModelType<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = %s {};",
		strings.Join(flat, "\n"))
	hierarchyTypings := fmt.Sprintf(
		"export type ModelTypeHierarchy<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = %s {};",
		strings.Join(hierarchy, "\n"))
	ftsTypings := fmt.Sprintf(
		"export type FTSFields<\n\tD extends DatabaseName,\n\tT extends ModelList<D>,\n> = %s never;",
		strings.Join(fts, "\n"))

	return strings.Join([]string{
		databaseNames,
		modelList.String(),
		flatTypings,
		hierarchyTypings,
		ftsTypings,
	}, "\n")
}

// buildForest indexes the database's models by iid, computes each model's
// path by walking parentiid upward, and links nested fields to their
// sub-model nodes.
func buildForest(list []models.Model) []*modelNode {
	byIID := make(map[string]*modelNode, len(list))
	nodes := make([]*modelNode, 0, len(list))
	for i := range list {
		node := &modelNode{model: &list[i]}
		byIID[list[i].IID] = node
		nodes = append(nodes, node)
	}

	for _, node := range nodes {
		path := modelPath(byIID, node.model, 0)
		for i := range node.model.Fields {
			field := &node.model.Fields[i]
			fn := &fieldNode{field: field}
			if path != "" {
				fn.flatName = fmt.Sprintf("%q", path+"."+field.Name)
			} else {
				fn.flatName = field.Name
			}
			switch field.Type {
			case "text":
				fn.searchable = field.Text != nil && field.Text.Searchable
			case "rich-text":
				fn.searchable = field.RichText != nil && field.RichText.Searchable
			}
			if iid := field.PairedModelIID(); iid != "" {
				fn.target = byIID[iid]
			}
			node.fields = append(node.fields, fn)
		}
	}
	return nodes
}

// maxNestingDepth bounds the parentiid walk; the forest is shallow and a
// longer chain means corrupt linkage.
const maxNestingDepth = 64

func modelPath(byIID map[string]*modelNode, model *models.Model, depth int) string {
	if model.IsTopLevel() || depth > maxNestingDepth {
		return ""
	}
	parent, ok := byIID[model.ParentIID]
	if !ok {
		return model.Name
	}
	if parentPath := modelPath(byIID, parent.model, depth+1); parentPath != "" {
		return parentPath + "." + model.Name
	}
	return model.Name
}

func databaseType(dbName string, nodes []*modelNode, flat bool) string {
	var parts []string
	for _, node := range nodes {
		if node.model.IsTopLevel() {
			parts = append(parts, modelType(node, flat))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("D extends %q ? never :", dbName)
	}
	return fmt.Sprintf("D extends %q ? %s never :", dbName, strings.Join(parts, "\n"))
}

func modelType(node *modelNode, flat bool) string {
	var members []string
	for _, fn := range node.fields {
		if member := fieldType(fn, flat); member != "" {
			members = append(members, member)
		}
	}
	body := strings.Join(members, "\n")

	switch node.model.Kind {
	case models.ModelKindModel:
		return fmt.Sprintf("T extends %q ? {%s} : ", node.model.Name, body)
	case models.ModelKindSubObject:
		if flat {
			return body
		}
		return fmt.Sprintf("%s: {%s};", node.model.Name, body)
	default: // sub-model-list
		if flat {
			return body
		}
		return fmt.Sprintf("%s: Array<{%s}>;", node.model.Name, body)
	}
}

func fieldType(fn *fieldNode, flat bool) string {
	name := fn.field.Name
	if flat {
		name = fn.flatName
	}

	switch fn.field.Type {
	case "id":
		return name + ": string | number;"
	case "reference":
		return name + ": ReferenceFieldType;"
	case "text", "rich-text", "encrypted-text", "email", "link", "phone", "time", "enum":
		return name + ": string;"
	case "createdat", "updatedat", "datetime", "date":
		return name + ": Date | string;"
	case "boolean":
		return name + ": boolean;"
	case "integer", "decimal", "monetary":
		return name + ": number;"
	case "geo-point":
		return name + ": [number, number];"
	case "binary":
		return name + ": Buffer;"
	case "json":
		return name + ": JSON;"
	case "basic-values-list":
		return name + ": any[];"
	case "object", "object-list":
		if fn.target == nil {
			return ""
		}
		return modelType(fn.target, flat)
	default:
		return ""
	}
}

func databaseFTS(dbName string, nodes []*modelNode) string {
	var parts []string
	for _, node := range nodes {
		if !node.model.IsTopLevel() {
			continue
		}
		searchable := collectSearchable(node, nil)
		if len(searchable) == 0 {
			parts = append(parts, fmt.Sprintf("T extends %q ? never : ", node.model.Name))
			continue
		}
		names := make([]string, len(searchable))
		for i, fn := range searchable {
			if strings.HasPrefix(fn.flatName, `"`) {
				names[i] = fn.flatName
			} else {
				names[i] = fmt.Sprintf("%q", fn.flatName)
			}
		}
		parts = append(parts, fmt.Sprintf("T extends %q ? %s : ", node.model.Name, strings.Join(names, " | ")))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("D extends %q ? never :", dbName)
	}
	return fmt.Sprintf("D extends %q ? %s never :", dbName, strings.Join(parts, "\n"))
}

func collectSearchable(node *modelNode, acc []*fieldNode) []*fieldNode {
	for _, fn := range node.fields {
		if fn.searchable {
			acc = append(acc, fn)
		}
		if fn.target != nil {
			acc = collectSearchable(fn.target, acc)
		}
	}
	return acc
}
