package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"iqdb/internal/engine"
	"iqdb/internal/store"
)

type postImageResponse struct {
	PostID    int64           `json:"post_id"`
	Hash      string          `json:"hash"`
	Signature signatureFields `json:"signature"`
}

type deleteImageResponse struct {
	PostID int64 `json:"post_id"`
}

// HandleImages dispatches POST (insert/replace) and DELETE for
// /images/:id.
func (app *App) HandleImages(w http.ResponseWriter, r *http.Request) {
	id, err := parseImageID(r.URL.Path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_image_id")
		return
	}

	switch r.Method {
	case http.MethodPost:
		app.handleImageInsert(w, r, id)
	case http.MethodDelete:
		app.handleImageDelete(w, id)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func parseImageID(path string) (int64, error) {
	raw := strings.TrimPrefix(path, "/images/")
	return strconv.ParseInt(raw, 10, 64)
}

func (app *App) handleImageInsert(w http.ResponseWriter, r *http.Request, id int64) {
	sig, err := resolveSignature(r)
	if err != nil {
		// A bare POST (no file, no hash) is reported as invalid_file here
		// rather than the missing_file_or_hash used by the query endpoint.
		// A hash query parameter is still accepted in place of a file.
		if err == errMissingFileOrHash {
			err = errInvalidFile
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Replace-on-conflict: delete any existing record for id before
	// inserting, so a re-upload of a known id swaps the signature.
	if app.Engine.Contains(id) {
		if err := app.deleteImage(id); err != nil {
			logAndFail(w, "images: replace delete", err)
			return
		}
	}

	if err := app.Store.Insert(id, sig); err != nil {
		logAndFail(w, "images: store insert", err)
		return
	}
	if err := app.Engine.Insert(id, sig); err != nil {
		logAndFail(w, "images: engine insert", err)
		return
	}

	WriteJSON(w, http.StatusOK, postImageResponse{
		PostID:    id,
		Hash:      sig.Format(),
		Signature: signatureFieldsOf(sig),
	})
}

func (app *App) handleImageDelete(w http.ResponseWriter, id int64) {
	if !app.Engine.Contains(id) {
		WriteError(w, http.StatusNotFound, "not_found")
		return
	}
	if err := app.deleteImage(id); err != nil {
		logAndFail(w, "images: delete", err)
		return
	}
	WriteJSON(w, http.StatusOK, deleteImageResponse{PostID: id})
}

// deleteImage removes id from the store and then, with the signature the
// store returns, unregisters it from the in-memory engine's buckets.
func (app *App) deleteImage(id int64) error {
	sig, err := app.Store.Delete(id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return err
	}
	if err := app.Engine.Delete(id, sig); err != nil && err != engine.ErrNotFound {
		return err
	}
	return nil
}
