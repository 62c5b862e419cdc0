package quotations

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Show)
			r.Get("/history", h.History)
			r.Post("/transitions", h.Transition)
			r.Post("/discount", h.Discount)
			r.Post("/free-months", h.FreeMonths)
			r.Post("/duplicate", h.Duplicate)
			r.Post("/pdf", h.RegeneratePDF)
			r.Get("/pdf", h.DownloadPDF)
		})
	})
}
