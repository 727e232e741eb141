package response

import (
	"encoding/json"
	"net/http"
)

const (
	// DataServiceVersionValue is returned on every schema service response.
	DataServiceVersionValue     = "2.0"
	HeaderDataServiceVersion    = "DataServiceVersion"
	HeaderMaxDataServiceVersion = "MaxDataServiceVersion"

	ContentTypeJSON = "application/json"
)

// SetDataServiceVersionHeader sets the DataServiceVersion header with the
// correct capitalization. A value already negotiated upstream is kept.
func SetDataServiceVersionHeader(w http.ResponseWriter) {
	if _, ok := w.Header()[HeaderDataServiceVersion]; !ok {
		w.Header()[HeaderDataServiceVersion] = []string{DataServiceVersionValue}
	}
}

// Envelope is the response wrapper used for entity and listing responses:
// {"d":{"results":...}}.
type Envelope struct {
	D Results `json:"d"`
}

// Results carries the entity representation or the result array.
type Results struct {
	Results interface{} `json:"results"`
}

// Metadata is the __metadata block embedded in every entity representation.
type Metadata struct {
	URI  string `json:"uri"`
	ETag string `json:"etag,omitempty"`
	Type string `json:"type"`
}

// WriteEntity writes a single-entity envelope with the given status.
// Control characters in string values are always emitted in escaped
// form; encoding/json guarantees that on every write path.
func WriteEntity(w http.ResponseWriter, status int, entity interface{}) error {
	return writeEnvelope(w, status, entity)
}

// WriteList writes a result-array envelope.
func WriteList(w http.ResponseWriter, status int, results []interface{}) error {
	if results == nil {
		results = []interface{}{}
	}
	return writeEnvelope(w, status, results)
}

func writeEnvelope(w http.ResponseWriter, status int, payload interface{}) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	SetDataServiceVersionHeader(w)
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(Envelope{D: Results{Results: payload}})
}

// LinkURI is a single entry of a $links listing.
type LinkURI struct {
	URI string `json:"uri"`
}

// WriteLinks writes a $links envelope containing the given target URIs.
func WriteLinks(w http.ResponseWriter, uris []string) error {
	entries := make([]interface{}, 0, len(uris))
	for _, uri := range uris {
		entries = append(entries, LinkURI{URI: uri})
	}
	return writeEnvelope(w, http.StatusOK, entries)
}
