package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/digicard/backend/export"
	"github.com/digicard/backend/tenant"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport streams the caller's contacts as an XLSX download. With
// ?combined=true an enterprise admin gets their own contacts plus every
// sub account's, tagged with a Source Sheet column.
func (s *server) handleExport(e *core.RequestEvent) error {
	combinedParam := e.Request.URL.Query().Get("combined")
	combined := combinedParam == "true" || combinedParam == "1"

	session, err := s.session(e.Request.Context(), e.Auth)
	if err != nil {
		return respondError(e, err)
	}
	tab, err := session.Manager.Tabular(e.Request.Context(), session.Owner)
	if err != nil {
		return respondError(e, err)
	}

	var data []byte
	if combined {
		if session.Ref.IsSub() {
			return e.JSON(http.StatusForbidden, map[string]interface{}{
				"error": "Combined export is only available to the account admin",
			})
		}
		subIDs, err := tenant.SubAccountIDs(s.app, session.Owner)
		if err != nil {
			return respondError(e, err)
		}
		data, err = export.Combined(e.Request.Context(), tab, session.Ref, subIDs)
		if err != nil {
			return respondError(e, err)
		}
	} else {
		data, err = export.Contacts(e.Request.Context(), tab, session.Ref)
		if err != nil {
			return respondError(e, err)
		}
	}

	filename := fmt.Sprintf("contacts_%s.xlsx", time.Now().Format("20060102"))
	e.Response.Header().Set("Content-Type", xlsxMimeType)
	e.Response.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	e.Response.WriteHeader(http.StatusOK)
	_, err = e.Response.Write(data)
	return err
}
