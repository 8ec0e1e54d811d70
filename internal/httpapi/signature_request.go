package httpapi

import (
	"errors"
	"net/http"

	"iqdb/internal/ingest"
	"iqdb/internal/signature"
)

// Request-resolution error codes, in the wire-level snake_case form.
var (
	errMissingFileOrHash = errors.New("missing_file_or_hash")
	errInvalidHash       = errors.New("invalid_hash")
	errInvalidFile       = errors.New("invalid_file")
	errInvalidImage      = errors.New("invalid_image")
)

// maxUploadSize bounds the multipart body the query/insert endpoints will
// read into memory while decoding an uploaded image.
const maxUploadSize = 10 << 20

// resolveSignature extracts a Signature from the request: a "hash" (or
// "h") query parameter holding the iqdb_ textual codec, or a multipart
// "file" field holding a raw image to decode and reduce via
// internal/ingest.
func resolveSignature(r *http.Request) (signature.Signature, error) {
	if hash := r.URL.Query().Get("hash"); hash != "" {
		return parseHashParam(hash)
	}
	if hash := r.URL.Query().Get("h"); hash != "" {
		return parseHashParam(hash)
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return signature.Signature{}, errMissingFileOrHash
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return signature.Signature{}, errMissingFileOrHash
	}
	defer file.Close()

	img, err := ingest.DecodeImage(file)
	if err != nil {
		return signature.Signature{}, errInvalidImage
	}
	return ingest.ComputeSignature(img), nil
}

func parseHashParam(hash string) (signature.Signature, error) {
	sig, err := signature.Parse(hash)
	if err != nil {
		return signature.Signature{}, errInvalidHash
	}
	return sig, nil
}
