// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// requests.go - POST /records payload-shape parsing.
//
// Three generations of clients submit three body shapes:
//   - nested:    {"record": {...}, "animals": [{...}, ...]}
//   - flattened: top-level record fields plus "animals"/"Animals"
//   - single:    top-level record fields plus "animal": {...}, or just
//     top-level fields describing one animal
//
// Bodies arrive as JSON, form-encoded, or multipart (with voucher files).
package api

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/media"
	"github.com/herpatlas/herpatlas/internal/normalize"
	"github.com/herpatlas/herpatlas/internal/record"
)

// maxUploadBytes bounds in-memory multipart parsing.
const maxUploadBytes = 64 << 20

// parseCreateRequest turns a POST /records body into a CreateInput,
// regardless of which historical shape and encoding the client used.
func parseCreateRequest(r *http.Request) (*record.CreateInput, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case contentType == "multipart/form-data":
		return parseMultipart(r)
	case contentType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, apperror.Validation("malformed form body: %s", err.Error())
		}
		return inputFromPayload(payloadFromForm(r.PostForm))
	default:
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, apperror.Validation("malformed JSON body: %s", err.Error())
		}
		return inputFromPayload(payload)
	}
}

func parseMultipart(r *http.Request) (*record.CreateInput, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, apperror.Validation("malformed multipart body: %s", err.Error())
	}
	in, err := inputFromPayload(payloadFromForm(r.MultipartForm.Value))
	if err != nil {
		return nil, err
	}

	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files"]
	}
	indexes := formList(r.MultipartForm.Value, "assigned_animal_index")
	kinds := formList(r.MultipartForm.Value, "file_kind")

	for i, fh := range files {
		animalIndex := 0
		if i < len(indexes) {
			n, err := strconv.Atoi(strings.TrimSpace(indexes[i]))
			if err != nil || n < 0 || n >= len(in.Animals) {
				return nil, apperror.Validation("assigned_animal_index[%d] must name an animal in this request", i)
			}
			animalIndex = n
		}
		kind := "image"
		if i < len(kinds) && kinds[i] != "" {
			kind = strings.ToLower(kinds[i])
		}
		switch kind {
		case "image", "video", "audio":
		default:
			return nil, apperror.Validation("file_kind[%d] must be image, video or audio", i)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, apperror.Validation("unreadable upload %q", fh.Filename)
		}
		in.Files = append(in.Files, record.FileAssignment{
			AnimalIndex: animalIndex,
			Upload: media.Upload{
				Filename:    fh.Filename,
				Kind:        kind,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        f,
			},
		})
	}
	return in, nil
}

// formList returns the values of key, accepting both the bare and the
// PHP-style bracketed spelling.
func formList(values url.Values, key string) []string {
	if v, ok := values[key+"[]"]; ok {
		return v
	}
	return values[key]
}

// payloadFromForm flattens form values into a payload map. JSON-encoded
// composite fields ("record", "animals", "animal") are decoded in place.
func payloadFromForm(values url.Values) map[string]any {
	payload := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		key = strings.TrimSuffix(key, "[]")
		v := vals[0]
		switch key {
		case "record", "animal":
			var m map[string]any
			if err := json.Unmarshal([]byte(v), &m); err == nil {
				payload[key] = m
				continue
			}
		case "animals", "Animals":
			var list []any
			if err := json.Unmarshal([]byte(v), &list); err == nil {
				payload[key] = list
				continue
			}
		}
		payload[key] = v
	}
	return payload
}

// inputFromPayload normalizes the three body shapes into shared fields
// plus a per-animal payload list.
func inputFromPayload(payload map[string]any) (*record.CreateInput, error) {
	in := &record.CreateInput{}

	shared := payload
	if rec, ok := payload["record"].(map[string]any); ok {
		shared = rec
	}
	in.Shared = normalize.Payload(shared)

	animals, err := animalList(payload)
	if err != nil {
		return nil, err
	}
	if len(animals) == 0 {
		if single, ok := payload["animal"].(map[string]any); ok {
			animals = []normalize.Payload{normalize.Payload(single)}
		}
	}
	if len(animals) == 0 {
		// Oldest clients describe exactly one animal with top-level fields.
		animals = []normalize.Payload{{}}
	}
	in.Animals = animals
	return in, nil
}

func animalList(payload map[string]any) ([]normalize.Payload, error) {
	raw, ok := payload["animals"]
	if !ok {
		raw, ok = payload["Animals"]
	}
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, apperror.Validation("animals must be a list")
	}
	animals := make([]normalize.Payload, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, apperror.Validation("animals[%d] must be an object", i)
		}
		animals = append(animals, normalize.Payload(m))
	}
	return animals, nil
}
