// Package apihandler exposes the services as a JSON API under /api.
package apihandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/domain"
	"lotmarket/internal/http/middleware"
	"lotmarket/internal/services/auction"
	"lotmarket/internal/services/bidding"
	"lotmarket/internal/services/company"
	"lotmarket/internal/services/contract"
	"lotmarket/internal/services/invoice"
	"lotmarket/internal/services/lot"
	"lotmarket/internal/services/review"
	"lotmarket/internal/services/session"
	"lotmarket/internal/services/user"

	"github.com/gin-gonic/gin"
)

type Services struct {
	Auctions  auction.IAuctionService
	Lots      lot.ILotService
	Bids      bidding.IBiddingService
	Contracts contract.IContractService
	Invoices  invoice.IInvoiceService
	Reviews   review.IReviewService
	Companies company.ICompanyService
	Users     user.IUserService
	Sessions  session.ISessionService
}

type Handler struct {
	svc        Services
	loginDelay time.Duration
}

// New builds the handler. Login responses are held back by a random delay
// of up to loginDelay.
func New(svc Services, loginDelay time.Duration) *Handler {
	return &Handler{svc: svc, loginDelay: loginDelay}
}

// Register mounts the login and registration routes on public and every
// other route on authed, which must run middleware.Session.
func (h *Handler) Register(public, authed gin.IRoutes) {
	public.POST("/session", middleware.AuthDelay(h.loginDelay), h.login)
	public.POST("/users", h.register)

	a := h.svc.Auctions
	authed.GET("/auctions", list(a.List))
	authed.GET("/auctions/:id", get(a.Get))
	authed.POST("/auctions", create(a.Create))
	authed.PUT("/auctions/:id", update(a.Update))
	authed.DELETE("/auctions/:id", remove(a.Delete))
	authed.GET("/auctions/:id/bids", listBy(h.svc.Bids.ListByAuction))

	l := h.svc.Lots
	authed.GET("/lots", list(l.List))
	authed.GET("/lots/:id", get(l.Get))
	authed.POST("/lots", create(l.Create))
	authed.PUT("/lots/:id", update(l.Update))
	authed.DELETE("/lots/:id", remove(l.Delete))
	authed.GET("/lots/:id/bids", listBy(h.svc.Bids.ListByLot))
	authed.POST("/lots/:id/bids", h.placeLotBid)

	b := h.svc.Bids
	authed.GET("/bids", list(b.List))
	authed.GET("/bids/:id", get(b.Get))
	authed.POST("/bids", create(b.PlaceBid))
	authed.PUT("/bids/:id", update(b.Update))
	authed.DELETE("/bids/:id", remove(b.Delete))

	ct := h.svc.Contracts
	authed.GET("/contracts", list(ct.List))
	authed.GET("/contracts/:id", get(ct.Get))
	authed.POST("/contracts", create(ct.Create))
	authed.PUT("/contracts/:id", update(ct.Update))
	authed.DELETE("/contracts/:id", remove(ct.Delete))

	inv := h.svc.Invoices
	authed.GET("/invoices", list(inv.List))
	authed.GET("/invoices/:id", get(inv.Get))
	authed.POST("/invoices", create(inv.Create))
	authed.PUT("/invoices/:id", update(inv.Update))
	authed.DELETE("/invoices/:id", remove(inv.Delete))

	rv := h.svc.Reviews
	authed.GET("/reviews", list(rv.List))
	authed.GET("/reviews/:id", get(rv.Get))
	authed.POST("/reviews", create(rv.Create))
	authed.PUT("/reviews/:id", update(rv.Update))
	authed.DELETE("/reviews/:id", remove(rv.Delete))

	co := h.svc.Companies
	authed.GET("/companies", list(co.List))
	authed.GET("/companies/:id", get(co.Get))
	authed.POST("/companies", create(co.Create))
	authed.PUT("/companies/:id", update(co.Update))
	authed.DELETE("/companies/:id", remove(co.Delete))

	u := h.svc.Users
	authed.GET("/users", list(u.List))
	authed.GET("/users/:id", get(u.Get))
	authed.PUT("/users/:id", update(u.Update))
	authed.DELETE("/users/:id", remove(u.Delete))
	authed.GET("/users/:id/favoritelots", listBy(u.FavoriteLots))
	authed.POST("/users/:id/favoritelots/:lotId", favoriteLot(u.AddFavoriteLot))
	authed.DELETE("/users/:id/favoritelots/:lotId", favoriteLot(u.RemoveFavoriteLot))
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest(name, "must be a positive integer")
	}
	return id, nil
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return apperr.BadRequest("body", err.Error())
	}
	return nil
}

// sessionOf is only empty when a route was registered without
// middleware.Session.
func sessionOf(c *gin.Context) (domain.Session, error) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return domain.Session{}, apperr.Unauthorized("no session")
	}
	return s, nil
}

func list[T any](fn func(context.Context, domain.Session) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		items, err := fn(c.Request.Context(), s)
		if err != nil {
			writeError(c, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, ListResponse[T]{Items: items})
	}
}

// listBy lists the children of the record named by :id.
func listBy[T any](fn func(context.Context, domain.Session, int64) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			writeError(c, err)
			return
		}
		items, err := fn(c.Request.Context(), s, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, ListResponse[T]{Items: items})
	}
}

func get[T any](fn func(context.Context, domain.Session, int64) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := fn(c.Request.Context(), s, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func create[In, Out any](fn func(context.Context, domain.Session, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		var in In
		if err := bindJSON(c, &in); err != nil {
			writeError(c, err)
			return
		}
		out, err := fn(c.Request.Context(), s, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func update[In, Out any](fn func(context.Context, domain.Session, int64, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			writeError(c, err)
			return
		}
		var in In
		if err := bindJSON(c, &in); err != nil {
			writeError(c, err)
			return
		}
		out, err := fn(c.Request.Context(), s, id, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func remove(fn func(context.Context, domain.Session, int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			writeError(c, err)
			return
		}
		if err := fn(c.Request.Context(), s, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
