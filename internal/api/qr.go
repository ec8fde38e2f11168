package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// TicketQR renders the ticket's barcode as a PNG QR code for door scanners.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	ticket, err := h.DB.GetTicketByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	png, err := qrcode.Encode(ticket.Barcode, qrcode.Medium, 256)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
