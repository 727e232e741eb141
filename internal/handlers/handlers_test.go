package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/property"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/userdata"
)

const testServiceRoot = "/cell/box/odata/$metadata"

type handlerFixture struct {
	handler *SchemaHandler
	schemas *schema.Store
	records *userdata.Store
	scope   schema.Scope
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	return newHandlerFixtureWithConfig(t, property.Config{})
}

func newHandlerFixtureWithConfig(t *testing.T, cfg property.Config) *handlerFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	schemas := schema.NewStore(db)
	require.NoError(t, schemas.AutoMigrate())
	records := userdata.NewStore(db)
	require.NoError(t, records.AutoMigrate())

	engine := property.NewEngine(schemas, records, cfg, nil)
	fixture := &handlerFixture{
		handler: NewSchemaHandler(engine, schemas, records, nil, nil),
		schemas: schemas,
		records: records,
		scope:   schema.Scope{Cell: "cell", Box: "box", Collection: "odata"},
	}
	_, err = schemas.CreateEntityType(t.Context(), fixture.scope, "Price")
	require.NoError(t, err)
	return fixture
}

func decodeEnvelope(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var envelope struct {
		D struct {
			Results map[string]interface{} `json:"results"`
		} `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &envelope))
	return envelope.D.Results
}

func TestPropertyCreateResponse(t *testing.T) {
	f := newHandlerFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"p1","_EntityType.Name":"Price","Type":"Edm.Int32","DefaultValue":42}`))
	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, r, f.scope, testServiceRoot)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, testServiceRoot+"/Property(Name='p1',_EntityType.Name='Price')",
		w.Header().Get(HeaderLocation))
	assert.NotEmpty(t, w.Header().Get(HeaderETag))
	assert.Equal(t, "2.0", w.Header().Get("DataServiceVersion"))

	results := decodeEnvelope(t, w.Body.String())
	assert.Equal(t, "p1", results["Name"])
	assert.Equal(t, "Price", results["_EntityType.Name"])
	assert.Equal(t, "Edm.Int32", results["Type"])
	assert.Equal(t, true, results["Nullable"])
	assert.EqualValues(t, 42, results["DefaultValue"])
	assert.Equal(t, "None", results["CollectionKind"])
	assert.Equal(t, false, results["IsKey"])
	assert.Nil(t, results["UniqueKey"])
	assert.Equal(t, true, results["IsDeclared"])

	metadata, ok := results["__metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, testServiceRoot+"/Property(Name='p1',_EntityType.Name='Price')", metadata["uri"])
	assert.Equal(t, TypeNameProperty, metadata["type"])
	assert.NotEmpty(t, metadata["etag"])

	published, ok := results["__published"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^/Date\([0-9]+\)/$`, published)
}

func TestPropertyGetUnknownIs404(t *testing.T) {
	f := newHandlerFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	f.handler.HandlePropertyEntity(w, r, f.scope, testServiceRoot, "Name='missing',_EntityType.Name='Price'")

	require.Equal(t, http.StatusNotFound, w.Code)
	var body struct {
		Code    string `json:"code"`
		Message struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "en", body.Message.Lang)
}

func TestPropertyKeyParsing(t *testing.T) {
	name, entityType, err := propertyKey("Name='it''s',_EntityType.Name='Price'")
	require.NoError(t, err)
	assert.Equal(t, "it's", name)
	assert.Equal(t, "Price", entityType)

	_, _, err = propertyKey("'positional'")
	assert.Error(t, err)

	_, _, err = propertyKey("Name='x'")
	assert.Error(t, err)
}

func TestPropertyLinksReadOnly(t *testing.T) {
	f := newHandlerFixture(t)

	create := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"p1","_EntityType.Name":"Price","Type":"Edm.String"}`))
	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, create, f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	key := "Name='p1',_EntityType.Name='Price'"

	w = httptest.NewRecorder()
	f.handler.HandlePropertyLinks(w, httptest.NewRequest(http.MethodGet, "/", nil), f.scope, testServiceRoot, key)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testServiceRoot+"/EntityType('Price')")

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		w = httptest.NewRecorder()
		f.handler.HandlePropertyLinks(w, httptest.NewRequest(method, "/", strings.NewReader("{}")), f.scope, testServiceRoot, key)
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		assert.Contains(t, w.Body.String(), "NO_SUCH_ASSOCIATION", method)
	}

	w = httptest.NewRecorder()
	f.handler.HandlePropertyLinks(w, httptest.NewRequest(http.MethodPut, "/", strings.NewReader("{}")), f.scope, testServiceRoot, key)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestEntityTypeNavigationCreate(t *testing.T) {
	f := newHandlerFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"viaNav","Type":"Edm.String"}`))
	w := httptest.NewRecorder()
	f.handler.HandleEntityTypeProperties(w, r, f.scope, testServiceRoot, "'Price'")

	require.Equal(t, http.StatusCreated, w.Code)
	results := decodeEnvelope(t, w.Body.String())
	assert.Equal(t, "Price", results["_EntityType.Name"])

	// The created property is visible through the navigation listing.
	w = httptest.NewRecorder()
	f.handler.HandleEntityTypeProperties(w, httptest.NewRequest(http.MethodGet, "/", nil), f.scope, testServiceRoot, "'Price'")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"viaNav"`)

	// Navigating an unknown EntityType is a 404.
	w = httptest.NewRecorder()
	f.handler.HandleEntityTypeProperties(w, httptest.NewRequest(http.MethodGet, "/", nil), f.scope, testServiceRoot, "'Missing'")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPropertyListFilter(t *testing.T) {
	f := newHandlerFixture(t)

	for _, spec := range []string{
		`{"Name":"a","_EntityType.Name":"Price","Type":"Edm.String"}`,
		`{"Name":"b","_EntityType.Name":"Price","Type":"Edm.Int32"}`,
	} {
		w := httptest.NewRecorder()
		f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(spec)), f.scope, testServiceRoot)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/?%24filter=Type+eq+%27Edm.Int32%27", nil)
	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, r, f.scope, testServiceRoot)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"b"`)
	assert.NotContains(t, w.Body.String(), `"Name":"a"`)
}

func TestRecordCreateFillsDeclaredDefaults(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"stamp","_EntityType.Name":"Price","Type":"Edm.DateTime","DefaultValue":"SYSUTCDATETIME()"}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"dynamic":"value"}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusCreated, w.Code)

	results := decodeEnvelope(t, w.Body.String())
	stamp, ok := results["stamp"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^/Date\([0-9]+\)/$`, stamp)
	assert.Equal(t, "value", results["dynamic"])
	assert.NotEmpty(t, results["__id"])

	// The dynamic field now exists as an undeclared property.
	found, err := f.schemas.GetProperty(t.Context(), f.scope, "dynamic", "Price")
	require.NoError(t, err)
	assert.False(t, found.IsDeclared)
	assert.Equal(t, "Edm.String", found.Type)
}

func TestRecordCreateMissingRequiredField(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"amount","_EntityType.Name":"Price","Type":"Edm.Int32","Nullable":false}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INPUT_REQUIRED_FIELD_MISSING")

	// A malformed declared value is rejected too.
	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"amount":"not-a-number"}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_FIELD_FORMAT_ERROR")
}

func TestEntityTypeDeleteGuards(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"p1","_EntityType.Name":"Price","Type":"Edm.String"}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleEntityTypeEntity(w, httptest.NewRequest(http.MethodDelete, "/", nil), f.scope, testServiceRoot, "'Price'")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandlePropertyEntity(w, httptest.NewRequest(http.MethodDelete, "/", nil), f.scope, testServiceRoot, "Name='p1',_EntityType.Name='Price'")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleEntityTypeEntity(w, httptest.NewRequest(http.MethodDelete, "/", nil), f.scope, testServiceRoot, "'Price'")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestComplexTypeDeleteBlockedWhileReferenced(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	f.handler.HandleComplexTypeCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"Address"}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"shipTo","_EntityType.Name":"Price","Type":"Address"}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleComplexTypeEntity(w, httptest.NewRequest(http.MethodDelete, "/", nil), f.scope, testServiceRoot, "'Address'")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRecordDuplicateIDLeavesNoDynamicProperties(t *testing.T) {
	f := newHandlerFixture(t)

	w := httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"__id":"r1","a":1}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusCreated, w.Code)

	// Reusing the __id conflicts, and the rejected request's undeclared
	// field must not survive as a dynamic property.
	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"__id":"r1","b":2}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ENTITY_ALREADY_EXISTS")

	_, err := f.schemas.GetProperty(t.Context(), f.scope, "b", "Price")
	require.ErrorIs(t, err, schema.ErrNotFound)

	found, err := f.schemas.GetProperty(t.Context(), f.scope, "a", "Price")
	require.NoError(t, err)
	assert.False(t, found.IsDeclared)
}

func TestRecordDateTimeUsesConfiguredBounds(t *testing.T) {
	f := newHandlerFixtureWithConfig(t, property.Config{
		DateTimeBounds: edm.DateTimeBounds{Min: 0, Max: 1000},
	})

	w := httptest.NewRecorder()
	f.handler.HandlePropertyCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"Name":"at","_EntityType.Name":"Price","Type":"Edm.DateTime"}`)), f.scope, testServiceRoot)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"at":"/Date(500)/"}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusCreated, w.Code)

	// Inside the service-default range but outside the configured one.
	w = httptest.NewRecorder()
	f.handler.HandleRecordCollection(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"at":"/Date(5000)/"}`)), f.scope, testServiceRoot, "Price")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_FIELD_FORMAT_ERROR")
}
