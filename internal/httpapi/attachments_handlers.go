package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type AttachmentsHandler struct {
	Dir func() string
}

// GetByPath serves /attachments/{name}. Only plain file names inside Dir are served.
func (h AttachmentsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/attachments/")
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid attachment name")
		return
	}

	path := filepath.Join(h.Dir(), name)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		WriteError(w, r, http.StatusNotFound, "not_found", "attachment not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
