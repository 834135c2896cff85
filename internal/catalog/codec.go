package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/surrealcore/coredb/internal/value"
)

// wire shapes mirror the exported Def types but substitute plain JSON
// scalars for value.Value/value.Type, which do not themselves implement
// json.Marshaler. Kind/Type are persisted as their String() form and
// re-resolved to a value.Type on decode via a small primitive-name table;
// composite Kind definitions (either/array/etc.) are out of scope for
// persistence round-tripping in this layer and are reconstructed by the
// caller from the DEFINE FIELD statement when richer typing is needed.
type namespaceWire struct {
	Name    string
	Version string
}

type databaseWire struct {
	Namespace string
	Name      string
	Version   string
}

type tableWire struct {
	Namespace string
	Database  string
	Name      string
	Kind      int
	Schema    int
	Version   string
}

type fieldWire struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	KindName  string
	ReadOnly  bool
}

type indexWire struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	Kind      int
	Fields    []string
	Dimension int
	Distance  string
}

type eventWire struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	When      int
	Then      string
}

type paramWire struct {
	Namespace string
	Database  string
	Name      string
	ValueJSON string
}

func encodeNamespaceDef(d NamespaceDef) []byte {
	b, _ := json.Marshal(namespaceWire{Name: d.Name, Version: d.Version.String()})
	return b
}

func encodeDatabaseDef(d DatabaseDef) []byte {
	b, _ := json.Marshal(databaseWire{Namespace: d.Namespace, Name: d.Name, Version: d.Version.String()})
	return b
}

func encodeTableDef(d TableDef) []byte {
	b, _ := json.Marshal(tableWire{
		Namespace: d.Namespace, Database: d.Database, Name: d.Name,
		Kind: int(d.Kind), Schema: int(d.Schema), Version: d.Version.String(),
	})
	return b
}

func decodeTableDef(raw []byte) (TableDef, error) {
	var w tableWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return TableDef{}, fmt.Errorf("catalog: decode table: %w", err)
	}
	v, err := parseUUID(w.Version)
	if err != nil {
		return TableDef{}, err
	}
	return TableDef{
		Namespace: w.Namespace, Database: w.Database, Name: w.Name,
		Kind: TableKind(w.Kind), Schema: SchemaMode(w.Schema), Version: v,
	}, nil
}

func encodeFieldDef(d FieldDef) []byte {
	b, _ := json.Marshal(fieldWire{
		Namespace: d.Namespace, Database: d.Database, Table: d.Table,
		Name: d.Name, KindName: d.Kind.String(), ReadOnly: d.ReadOnly,
	})
	return b
}

func decodeFieldDef(raw []byte) (FieldDef, error) {
	var w fieldWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return FieldDef{}, fmt.Errorf("catalog: decode field: %w", err)
	}
	kind := value.Any()
	for k := value.KindNone; k <= value.KindRange; k++ {
		if k.String() == w.KindName {
			kind = value.Primitive(k)
			break
		}
	}
	return FieldDef{
		Namespace: w.Namespace, Database: w.Database, Table: w.Table,
		Name: w.Name, Kind: kind, ReadOnly: w.ReadOnly,
	}, nil
}

func encodeIndexDef(d IndexDef) []byte {
	b, _ := json.Marshal(indexWire{
		Namespace: d.Namespace, Database: d.Database, Table: d.Table, Name: d.Name,
		Kind: int(d.Kind), Fields: d.Fields, Dimension: d.Dimension, Distance: d.Distance,
	})
	return b
}

func decodeIndexDef(raw []byte) (IndexDef, error) {
	var w indexWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return IndexDef{}, fmt.Errorf("catalog: decode index: %w", err)
	}
	return IndexDef{
		Namespace: w.Namespace, Database: w.Database, Table: w.Table, Name: w.Name,
		Kind: IndexKind(w.Kind), Fields: w.Fields, Dimension: w.Dimension, Distance: w.Distance,
	}, nil
}

func encodeEventDef(d EventDef) []byte {
	b, _ := json.Marshal(eventWire{
		Namespace: d.Namespace, Database: d.Database, Table: d.Table, Name: d.Name,
		When: int(d.When), Then: d.Then,
	})
	return b
}

func decodeEventDef(raw []byte) (EventDef, error) {
	var w eventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return EventDef{}, fmt.Errorf("catalog: decode event: %w", err)
	}
	return EventDef{
		Namespace: w.Namespace, Database: w.Database, Table: w.Table, Name: w.Name,
		When: EventKind(w.When), Then: w.Then,
	}, nil
}

func encodeParamDef(d ParamDef) []byte {
	vj, _ := value.ToJSON(d.Value)
	b, _ := json.Marshal(paramWire{Namespace: d.Namespace, Database: d.Database, Name: d.Name, ValueJSON: vj})
	return b
}

func decodeParamDef(raw []byte) (ParamDef, error) {
	var w paramWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return ParamDef{}, fmt.Errorf("catalog: decode param: %w", err)
	}
	return ParamDef{
		Namespace: w.Namespace, Database: w.Database, Name: w.Name,
		Value: value.FromJSON(w.ValueJSON),
	}, nil
}
