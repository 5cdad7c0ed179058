package engine

import "sort"

// Engine is the physical database technology a logical database is mapped
// onto.
type Engine string

const (
	EnginePostgreSQL Engine = "PostgreSQL"
	EngineMySQL      Engine = "MySQL"
	EngineSQLServer  Engine = "SQL Server"
	EngineMongoDB    Engine = "MongoDB"
)

// Engines returns the supported engine kinds.
func Engines() []Engine {
	return []Engine{EnginePostgreSQL, EngineMySQL, EngineSQLServer, EngineMongoDB}
}

// KnownEngine reports whether name is one of the supported engine kinds.
func KnownEngine(name string) bool {
	for _, e := range Engines() {
		if string(e) == name {
			return true
		}
	}
	return false
}

// DBTypeUnsupported is the sentinel physical type for field types that an
// engine cannot represent.
const DBTypeUnsupported = "n/a"

// Semantic groups of field types.
const (
	GroupIdentifier = "identifier"
	GroupTextual    = "textual"
	GroupEnumerated = "enumerated"
	GroupBoolean    = "boolean"
	GroupNumeric    = "numeric"
	GroupTemporal   = "temporal"
	GroupSpatial    = "spatial"
	GroupBinary     = "binary"
	GroupStructured = "structured"
	GroupStructural = "structural"
	GroupReference  = "reference"
	GroupList       = "list"
)

// FieldTypeSpec describes one entry of the static field type catalog: its
// semantic group, which boolean view properties a field of this type may
// carry, and the physical type it maps to per engine. A field type is
// available on an engine iff its physical type entry is present and not the
// DBTypeUnsupported sentinel.
type FieldTypeSpec struct {
	Name  string
	Group string

	CanBeUnique     bool
	CanBeIndexed    bool
	CanBeImmutable  bool
	CanBeSearchable bool

	DBTypes map[Engine]string
}

// Supports reports whether the field type is available on the engine.
func (s *FieldTypeSpec) Supports(engine Engine) bool {
	t, ok := s.DBTypes[engine]
	return ok && t != DBTypeUnsupported
}

func allEngines(pg, my, ms, mongo string) map[Engine]string {
	return map[Engine]string{
		EnginePostgreSQL: pg,
		EngineMySQL:      my,
		EngineSQLServer:  ms,
		EngineMongoDB:    mongo,
	}
}

func mongoOnly(mongo string) map[Engine]string {
	return allEngines(DBTypeUnsupported, DBTypeUnsupported, DBTypeUnsupported, mongo)
}

var fieldTypeCatalog = map[string]*FieldTypeSpec{
	"id": {
		Name: "id", Group: GroupIdentifier,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("bigserial", "bigint", "bigint", "objectId"),
	},
	"text": {
		Name: "text", Group: GroupTextual,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true, CanBeSearchable: true,
		DBTypes: allEngines("varchar", "varchar", "nvarchar", "string"),
	},
	"rich-text": {
		Name: "rich-text", Group: GroupTextual,
		CanBeIndexed: true, CanBeImmutable: true, CanBeSearchable: true,
		DBTypes: allEngines("text", "longtext", "nvarchar(max)", "string"),
	},
	"encrypted-text": {
		Name: "encrypted-text", Group: GroupTextual,
		CanBeImmutable: true,
		DBTypes:        allEngines("text", "longtext", "nvarchar(max)", "string"),
	},
	"email": {
		Name: "email", Group: GroupTextual,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("varchar", "varchar", "nvarchar", "string"),
	},
	"link": {
		Name: "link", Group: GroupTextual,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("text", "text", "nvarchar(max)", "string"),
	},
	"phone": {
		Name: "phone", Group: GroupTextual,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("varchar", "varchar", "nvarchar", "string"),
	},
	"boolean": {
		Name: "boolean", Group: GroupBoolean,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("boolean", "tinyint(1)", "bit", "bool"),
	},
	"integer": {
		Name: "integer", Group: GroupNumeric,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("integer", "int", "int", "int"),
	},
	"decimal": {
		Name: "decimal", Group: GroupNumeric,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("numeric", "decimal", "decimal", "double"),
	},
	"monetary": {
		Name: "monetary", Group: GroupNumeric,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("numeric", "decimal", "money", "decimal"),
	},
	"createdat": {
		Name: "createdat", Group: GroupTemporal,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("timestamp", "datetime", "datetime2", "date"),
	},
	"updatedat": {
		Name: "updatedat", Group: GroupTemporal,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("timestamp", "datetime", "datetime2", "date"),
	},
	"datetime": {
		Name: "datetime", Group: GroupTemporal,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("timestamp", "datetime", "datetime2", "date"),
	},
	"date": {
		Name: "date", Group: GroupTemporal,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("date", "date", "date", DBTypeUnsupported),
	},
	"time": {
		Name: "time", Group: GroupTemporal,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("time", "time", "time", DBTypeUnsupported),
	},
	"enum": {
		Name: "enum", Group: GroupEnumerated,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("varchar", "enum", "nvarchar", "string"),
	},
	"geo-point": {
		Name: "geo-point", Group: GroupSpatial,
		CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("point", "point", "geography", "object"),
	},
	"binary": {
		Name: "binary", Group: GroupBinary,
		CanBeImmutable: true,
		DBTypes:        allEngines("bytea", "blob", "varbinary(max)", "binData"),
	},
	"json": {
		Name: "json", Group: GroupStructured,
		CanBeImmutable: true,
		DBTypes:        allEngines("jsonb", "json", DBTypeUnsupported, "object"),
	},
	"parent": {
		Name: "parent", Group: GroupStructural,
		CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: mongoOnly("objectId"),
	},
	"reference": {
		Name: "reference", Group: GroupReference,
		CanBeUnique: true, CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: allEngines("bigint", "bigint", "bigint", "objectId"),
	},
	"object": {
		Name: "object", Group: GroupStructural,
		DBTypes: mongoOnly("object"),
	},
	"object-list": {
		Name: "object-list", Group: GroupStructural,
		DBTypes: mongoOnly("array"),
	},
	"basic-values-list": {
		Name: "basic-values-list", Group: GroupList,
		CanBeIndexed: true, CanBeImmutable: true,
		DBTypes: mongoOnly("array"),
	},
}

// FieldTypeFor returns the catalog entry for the named field type.
func FieldTypeFor(name string) (*FieldTypeSpec, bool) {
	spec, ok := fieldTypeCatalog[name]
	return spec, ok
}

// KnownFieldType reports whether name is a catalog field type.
func KnownFieldType(name string) bool {
	_, ok := fieldTypeCatalog[name]
	return ok
}

// SupportsFieldType reports whether the field type may be used on a database
// of the given engine kind.
func SupportsFieldType(engine Engine, fieldType string) bool {
	spec, ok := fieldTypeCatalog[fieldType]
	return ok && spec.Supports(engine)
}

// SearchableFieldType reports whether fields of the type may be marked
// searchable for full text indexing.
func SearchableFieldType(fieldType string) bool {
	spec, ok := fieldTypeCatalog[fieldType]
	return ok && spec.CanBeSearchable
}

// PhysicalType returns the engine specific physical type annotation for the
// field type, or DBTypeUnsupported.
func PhysicalType(engine Engine, fieldType string) string {
	spec, ok := fieldTypeCatalog[fieldType]
	if !ok {
		return DBTypeUnsupported
	}
	t, ok := spec.DBTypes[engine]
	if !ok {
		return DBTypeUnsupported
	}
	return t
}

// FieldTypeNames returns all catalog type names in sorted order.
func FieldTypeNames() []string {
	names := make([]string, 0, len(fieldTypeCatalog))
	for name := range fieldTypeCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldSpecificPropName returns the name of the type specific payload a
// field of the given type carries, or "" when it has none.
func FieldSpecificPropName(fieldType string) string {
	switch fieldType {
	case "basic-values-list":
		return "basicValuesList"
	case "decimal":
		return "decimal"
	case "encrypted-text":
		return "encryptedText"
	case "enum":
		return "enum"
	case "object":
		return "object"
	case "object-list":
		return "objectList"
	case "rich-text":
		return "richText"
	case "text":
		return "text"
	case "reference":
		return "reference"
	default:
		return ""
	}
}

// BasicValueKinds lists the element types a basic-values-list may hold.
func BasicValueKinds() []string {
	return []string{
		"text", "boolean", "integer", "decimal", "monetary",
		"datetime", "date", "time", "email", "link", "phone", "id",
	}
}
