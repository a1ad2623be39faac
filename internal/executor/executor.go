package executor

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	language "github.com/hanpama/procgraph/internal/language"
	schema "github.com/hanpama/procgraph/internal/schema"
)

// Path locates a value in the response.
type Path []PathElement

// PathElement is a response name (string) or a list index (int).
type PathElement any

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	errors         []GraphQLError

	// queue holds the async fields found at the current depth.
	queue []queuedField
	// pruned holds the rendered paths that were nulled; nothing below them
	// is resolved or written.
	pruned map[string]struct{}
}

type queuedField struct {
	task   AsyncResolveTask
	path   Path
	typ    *schema.TypeRef
	fields []*language.Field
}

// queued fills a response slot until the batch holding its field completes.
type queued struct{}

// ExecuteRequest runs one operation of document. initialValue is the source
// value of the root fields.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	op := getOperation(document, operationName)
	if op == nil {
		return failed("operation not found")
	}
	vars, err := coerceVariableValues(e.schema, op, variableValues)
	if err != nil {
		return failed(err.Error())
	}
	root, err := e.rootType(op.Operation)
	if err != nil {
		return failed(err.Error())
	}

	st := &executionState{
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: vars,
		context:        ctx,
		errors:         []GraphQLError{},
		pruned:         make(map[string]struct{}),
	}
	data := executeSelectionSet(st, root, op.SelectionSet, initialValue, Path{})
	for len(st.queue) > 0 {
		st.flush(data)
	}
	return &ExecutionResult{Data: data, Errors: st.errors}
}

func failed(msg string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: msg}}}
}

func (e *Executor) rootType(op language.Operation) (*schema.Type, error) {
	var t *schema.Type
	switch op {
	case language.Query:
		t = e.schema.GetQueryType()
	case language.Mutation:
		t = e.schema.GetMutationType()
	case language.Subscription:
		t = e.schema.GetSubscriptionType()
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", op)
	}
	if t == nil {
		return nil, fmt.Errorf("root type not found for %s operation", op)
	}
	return t, nil
}

func getOperation(document *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// executeSelectionSet resolves the sync fields of one object and queues its
// async fields. It returns nil when a Non-Null field below the root came back
// null, in which case the object as a whole is null.
func executeSelectionSet(st *executionState, objectType *schema.Type, selectionSet language.SelectionSet, source any, path Path) map[string]any {
	out := make(map[string]any)
	for _, cf := range collectFields(st, objectType, selectionSet) {
		fieldPath := appendPath(path, cf.ResponseName)
		name := cf.Fields[0].Name
		if name == "__typename" {
			out[cf.ResponseName] = objectType.Name
			continue
		}
		def := objectType.FieldByName(name)
		if def == nil {
			st.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", name, objectType.Name), fieldPath)
			continue
		}

		v := executeField(st, objectType, def, cf.Fields, source, fieldPath)
		if isNullish(v) {
			if def.Type.IsNonNull() && len(path) > 0 {
				st.prune(path)
				return nil
			}
			v = nil
		}
		out[cf.ResponseName] = v
	}
	return out
}

func executeField(st *executionState, objectType *schema.Type, def *schema.Field, fields []*language.Field, source any, path Path) any {
	args, ok := coerceArgumentValues(st.schema, def, fields[0].Arguments, st.variableValues, st, path)
	if !ok {
		return nil
	}
	if def.Async {
		st.queue = append(st.queue, queuedField{
			task:   AsyncResolveTask{ObjectType: objectType.Name, Field: def.Name, Source: source, Args: args},
			path:   path,
			typ:    def.Type,
			fields: fields,
		})
		return queued{}
	}
	v, err := st.runtime.ResolveSync(st.context, objectType.Name, def.Name, source, args)
	if err != nil {
		st.addError(err.Error(), path)
		v = nil
	}
	return completeValue(st, def.Type, fields, v, path)
}

// flush resolves the queued fields of one depth with a single batch call and
// completes them into data. Completion may queue the next depth.
func (st *executionState) flush(data map[string]any) {
	var live []queuedField
	for _, q := range st.queue {
		if !st.isPruned(q.path) {
			live = append(live, q)
		}
	}
	st.queue = nil
	if len(live) == 0 {
		return
	}

	tasks := make([]AsyncResolveTask, len(live))
	for i, q := range live {
		tasks[i] = q.task
	}
	results := st.runtime.BatchResolveAsync(st.context, tasks)
	for i, q := range live {
		res := AsyncResolveResult{Error: fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))}
		if i < len(results) {
			res = results[i]
		}
		st.complete(data, q, res)
	}
}

// complete writes one batch result into data. A null for a Non-Null async
// field nulls the root field it belongs to.
func (st *executionState) complete(data map[string]any, q queuedField, res AsyncResolveResult) {
	if st.isPruned(q.path) {
		return
	}
	var v any
	if res.Error != nil {
		st.addError(res.Error.Error(), q.path)
	} else {
		v = completeValue(st, q.typ, q.fields, res.Value, q.path)
	}
	if isNullish(v) {
		if q.typ.IsNonNull() {
			root := q.path[:1]
			setValueAtPath(data, root, nil)
			st.prune(root)
			return
		}
		v = nil
	}
	setValueAtPath(data, q.path, v)
}

func completeValue(st *executionState, typ *schema.TypeRef, fields []*language.Field, value any, path Path) any {
	if typ.IsNonNull() {
		if isNullish(value) {
			if !st.hasErrorAt(path) {
				st.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			}
			return nil
		}
		v := completeValue(st, typ.OfType, fields, value, path)
		if isNullish(v) {
			return nil
		}
		return v
	}
	if isNullish(value) {
		return nil
	}
	if typ.IsList() {
		return completeList(st, typ, fields, value, path)
	}

	name := typ.GetNamedType()
	t := st.schema.Types[name]
	if t == nil {
		st.addError(fmt.Sprintf("Unknown type: %s", name), path)
		return nil
	}
	switch t.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := st.runtime.SerializeLeafValue(st.context, name, value)
		if err != nil {
			st.addError(err.Error(), path)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return completeObject(st, t, fields, value, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstract(st, t, fields, value, path)
	}
	st.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", t.Kind), path)
	return nil
}

func completeList(st *executionState, typ *schema.TypeRef, fields []*language.Field, value any, path Path) any {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			st.addError(fmt.Sprintf("Expected list value, got %T", value), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	elem := typ.OfType
	out := make([]any, len(items))
	for i, item := range items {
		v := completeValue(st, elem, fields, item, appendPath(path, i))
		if isNullish(v) {
			if elem.IsNonNull() {
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

func completeObject(st *executionState, objectType *schema.Type, fields []*language.Field, value any, path Path) any {
	var sub language.SelectionSet
	for _, f := range fields {
		sub = append(sub, f.SelectionSet...)
	}
	if m := executeSelectionSet(st, objectType, sub, value, path); m != nil {
		return m
	}
	return nil
}

func completeAbstract(st *executionState, abstract *schema.Type, fields []*language.Field, value any, path Path) any {
	name, err := st.runtime.ResolveType(st.context, abstract.Name, value)
	if err != nil {
		st.addError(err.Error(), path)
		return nil
	}
	objectType := st.schema.Types[name]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		st.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstract.Name, name), path)
		return nil
	}

	if abstract.Kind == schema.TypeKindUnion {
		value, err = st.runtime.ResolveUnionConcreteValue(st.context, abstract.Name, value)
	} else {
		value, err = st.runtime.ResolveInterfaceConcreteValue(st.context, abstract.Name, value)
	}
	if err != nil {
		st.addError(err.Error(), path)
		return nil
	}
	return completeObject(st, objectType, fields, value, path)
}

func (st *executionState) addError(message string, path Path) {
	st.errors = append(st.errors, GraphQLError{Message: message, Path: path})
}

func (st *executionState) hasErrorAt(path Path) bool {
	for _, e := range st.errors {
		if reflect.DeepEqual(e.Path, path) {
			return true
		}
	}
	return false
}

func (st *executionState) prune(path Path) {
	if len(path) > 0 {
		st.pruned[pathToString(path)] = struct{}{}
	}
}

func (st *executionState) isPruned(path Path) bool {
	if len(st.pruned) == 0 {
		return false
	}
	for i := 1; i <= len(path); i++ {
		if _, ok := st.pruned[pathToString(path[:i])]; ok {
			return true
		}
	}
	return false
}

// pathToString renders a path as "notes.[0].author".
func pathToString(path Path) string {
	var b strings.Builder
	for i, el := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		switch v := el.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func appendPath(path Path, el PathElement) Path {
	out := make(Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, el)
}

// setValueAtPath replaces the value at path. Containers on the way must
// already exist; a write below a nulled object is dropped.
func setValueAtPath(data map[string]any, path Path, v any) {
	var cur any = data
	for i, el := range path {
		last := i == len(path)-1
		switch k := el.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			if last {
				m[k] = v
				return
			}
			cur = m[k]
		case int:
			s, ok := cur.([]any)
			if !ok || k >= len(s) {
				return
			}
			if last {
				s[k] = v
				return
			}
			cur = s[k]
		}
	}
}

// isNullish reports nil and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
