package graphstore

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Labeler lets a mapped struct choose its node label. Without it the label is
// the struct's type name.
type Labeler interface {
	GraphLabel() string
}

// entityMetadata holds the parsed `graph` tags of a struct type.
type entityMetadata struct {
	Label string
	// PKField and PKProp name the identity field and its stored property.
	PKField string
	PKProp  string
	// Mappings maps struct field names to stored property names.
	Mappings map[string]string
}

var metaCache sync.Map // reflect.Type -> *entityMetadata

// parseTagsFromType reads `graph:"pk,property:Name"` tags from a struct type.
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ.Name())
	}

	meta := &entityMetadata{
		Label:    typ.Name(),
		Mappings: make(map[string]string),
	}
	if l, ok := reflect.New(typ).Elem().Interface().(Labeler); ok {
		meta.Label = l.GraphLabel()
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("graph")
		if tag == "" {
			continue
		}

		isPk := false
		propName := ""
		for _, part := range strings.Split(tag, ",") {
			if part == "pk" {
				isPk = true
			}
			if strings.HasPrefix(part, "property:") {
				propName = strings.TrimPrefix(part, "property:")
			}
		}
		if propName == "" {
			return nil, fmt.Errorf("field %s is missing 'property' tag component", field.Name)
		}

		if isPk {
			meta.PKField = field.Name
			meta.PKProp = propName
		}
		meta.Mappings[field.Name] = propName
	}

	if meta.PKField == "" {
		return nil, fmt.Errorf("no primary key ('pk') tag defined for struct %s", typ.Name())
	}
	return meta, nil
}

// metadataFor returns the cached metadata of T, parsing it on first use.
func metadataFor[T any]() (*entityMetadata, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	metaCache.Store(typ, meta)
	return meta, nil
}

// Decode maps the properties of node onto a new T. Properties absent from the
// node leave the field at its zero value.
func Decode[T any](node neo4j.Node) (*T, error) {
	meta, err := metadataFor[T]()
	if err != nil {
		return nil, err
	}
	entity := new(T)
	if err := mapNodeToStruct(node, entity, meta); err != nil {
		return nil, err
	}
	return entity, nil
}

func mapNodeToStruct(node neo4j.Node, entity any, meta *entityMetadata) error {
	val := reflect.ValueOf(entity).Elem()

	for fieldName, propName := range meta.Mappings {
		field := val.FieldByName(fieldName)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		propValue, ok := node.Props[propName]
		if !ok || propValue == nil {
			continue
		}
		if err := assign(field, reflect.ValueOf(propValue)); err != nil {
			return fmt.Errorf("property %s: %w", propName, err)
		}
	}
	return nil
}

// assign stores v in field, converting between numeric kinds (the store
// returns int64 and float64) and allocating pointer fields.
func assign(field reflect.Value, v reflect.Value) error {
	target := field.Type()
	if target.Kind() == reflect.Ptr {
		elem := reflect.New(target.Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	if v.Type().AssignableTo(target) {
		field.Set(v)
		return nil
	}
	if isNumeric(v.Kind()) && isNumeric(target.Kind()) {
		field.Set(v.Convert(target))
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", v.Type(), target)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
