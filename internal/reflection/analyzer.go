package reflection

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// In is embedded in a struct to mark it as a parameter object.
// Each exported field of the struct becomes one dependency.
type In struct{}

var (
	inType  = reflect.TypeOf((*In)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Analyzer performs reflection-based analysis of constructors and types.
// It caches analysis results for performance.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[cacheKey]*ConstructorInfo
}

// cacheKey includes the function type because instantiations of a generic
// constructor may share a code pointer.
type cacheKey struct {
	ptr uintptr
	typ reflect.Type
}

// ConstructorInfo contains analyzed information about a constructor function.
type ConstructorInfo struct {
	Type           reflect.Type
	Value          reflect.Value
	Parameters     []ParameterInfo
	ResultType     reflect.Type
	ParamObject    reflect.Type // set when the only parameter embeds In
	HasErrorReturn bool
}

// ParameterInfo describes a constructor parameter, a field of an In struct,
// or an injectable property.
type ParameterInfo struct {
	Type       reflect.Type
	Name       string // declared or derived name
	Index      int    // parameter index or field index
	Optional   bool   // optional:"true"
	Component  string // name:"component"
	ConfigKey  string // config:"KEY"
	Default    string // default:"value"
	HasDefault bool
	IsValue    bool // primitive or configuration value
}

// TagInfo contains parsed struct tag information.
type TagInfo struct {
	Optional   bool
	Name       string
	ConfigKey  string
	Default    string
	HasDefault bool
	Ignore     bool
	Inject     bool
	Required   bool
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[cacheKey]*ConstructorInfo),
	}
}

// Analyze analyzes a constructor function. names, when given, override the
// derived parameter names positionally.
func (a *Analyzer) Analyze(constructor any, names ...string) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %T", constructor)
	}
	if val.IsNil() {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	key := cacheKey{ptr: val.Pointer(), typ: val.Type()}

	var info *ConstructorInfo
	a.mu.RLock()
	cached, ok := a.cache[key]
	a.mu.RUnlock()

	if ok {
		info = cached
	} else {
		var err error
		info, err = a.analyze(val)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.cache[key] = info
		a.mu.Unlock()
	}

	if len(names) == 0 {
		return info, nil
	}

	if info.ParamObject != nil {
		return nil, fmt.Errorf("parameter names cannot be given for parameter object constructor %s", info.Type)
	}
	if len(names) > len(info.Parameters) {
		return nil, fmt.Errorf("%d parameter names given for constructor %s with %d parameters", len(names), info.Type, len(info.Parameters))
	}

	named := *info
	named.Parameters = make([]ParameterInfo, len(info.Parameters))
	copy(named.Parameters, info.Parameters)
	for i, n := range names {
		if n != "" {
			named.Parameters[i].Name = n
		}
	}
	return &named, nil
}

func (a *Analyzer) analyze(val reflect.Value) (*ConstructorInfo, error) {
	fnType := val.Type()
	info := &ConstructorInfo{
		Type:  fnType,
		Value: val,
	}

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errType {
			return nil, fmt.Errorf("constructor %s only returns error", fnType)
		}
	case 2:
		if !fnType.Out(1).Implements(errType) {
			return nil, fmt.Errorf("second return value of constructor %s must be error", fnType)
		}
		info.HasErrorReturn = true
	default:
		return nil, fmt.Errorf("constructor %s must return (T) or (T, error)", fnType)
	}
	info.ResultType = fnType.Out(0)

	if fnType.IsVariadic() {
		return nil, fmt.Errorf("variadic constructor %s is not supported", fnType)
	}

	if fnType.NumIn() == 1 && hasEmbeddedType(fnType.In(0), inType) {
		paramType := fnType.In(0)
		params, err := a.analyzeParamObject(paramType)
		if err != nil {
			return nil, err
		}
		info.ParamObject = paramType
		info.Parameters = params
		return info, nil
	}

	info.Parameters = make([]ParameterInfo, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		info.Parameters[i] = ParameterInfo{
			Type:    paramType,
			Name:    DeriveName(paramType, i),
			Index:   i,
			IsValue: IsValueType(paramType),
		}
	}

	return info, nil
}

// analyzeParamObject analyzes an In struct's fields.
func (a *Analyzer) analyzeParamObject(structType reflect.Type) ([]ParameterInfo, error) {
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("In parameter must be a struct, got %v", structType.Kind())
	}

	params := make([]ParameterInfo, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type == inType {
			continue
		}

		tagInfo := ParseFieldTags(field.Tag)
		if tagInfo.Ignore {
			continue
		}

		params = append(params, fieldParameter(field, i, tagInfo))
	}

	return params, nil
}

// AnalyzeProperties returns the injectable properties of an implementation
// type: exported fields of the pointed-to struct that carry an inject tag.
// Properties are optional unless tagged inject:"required".
func (a *Analyzer) AnalyzeProperties(implType reflect.Type) []ParameterInfo {
	if implType == nil || implType.Kind() != reflect.Pointer || implType.Elem().Kind() != reflect.Struct {
		return nil
	}

	structType := implType.Elem()
	var props []ParameterInfo
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		tagInfo := ParseFieldTags(field.Tag)
		if !tagInfo.Inject || tagInfo.Ignore {
			continue
		}

		p := fieldParameter(field, i, tagInfo)
		p.Optional = !tagInfo.Required
		props = append(props, p)
	}

	return props
}

func fieldParameter(field reflect.StructField, index int, tagInfo TagInfo) ParameterInfo {
	return ParameterInfo{
		Type:       field.Type,
		Name:       field.Name,
		Index:      index,
		Optional:   tagInfo.Optional,
		Component:  tagInfo.Name,
		ConfigKey:  tagInfo.ConfigKey,
		Default:    tagInfo.Default,
		HasDefault: tagInfo.HasDefault,
		IsValue:    tagInfo.ConfigKey != "" || IsValueType(field.Type),
	}
}

// ParseFieldTags parses struct field tags for DI-specific annotations.
func ParseFieldTags(tag reflect.StructTag) TagInfo {
	info := TagInfo{}

	if val, ok := tag.Lookup("optional"); ok {
		info.Optional = val == "true"
	}

	if val, ok := tag.Lookup("name"); ok {
		info.Name = val
	}

	if val, ok := tag.Lookup("config"); ok {
		info.ConfigKey = val
	}

	if val, ok := tag.Lookup("default"); ok {
		info.Default = val
		info.HasDefault = true
	}

	if val, ok := tag.Lookup("inject"); ok {
		switch val {
		case "-":
			info.Ignore = true
		case "required":
			info.Inject = true
			info.Required = true
		default:
			info.Inject = true
		}
	}

	return info
}

// IsValueType reports whether t is injected as a value rather than a service.
func IsValueType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// DeriveName returns the name used for an unnamed constructor parameter:
// the lower-camel type name for named types, pN otherwise.
func DeriveName(t reflect.Type, index int) string {
	base := t
	for base.Kind() == reflect.Pointer || base.Kind() == reflect.Slice {
		base = base.Elem()
	}

	name := base.Name()
	if name == "" || base.PkgPath() == "" {
		return fmt.Sprintf("p%d", index)
	}

	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}

	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// hasEmbeddedType checks if a type has an embedded field of the given type.
func hasEmbeddedType(t, embedded reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == embedded {
			return true
		}
	}

	return false
}

// Clear clears the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	a.cache = make(map[cacheKey]*ConstructorInfo)
	a.mu.Unlock()
}

// CacheSize returns the number of cached analyses.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}
