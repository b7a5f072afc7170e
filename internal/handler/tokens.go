package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/prankroom/prank-studio/internal/model"
	"github.com/prankroom/prank-studio/internal/repository"
)

// balanceCacheTTL keeps balance reads cheap without letting the cached
// value drift for long.  Every ledger write deletes the key.
const balanceCacheTTL = 15 * time.Second

func balanceCacheKey(uid uint64) string {
	return "balance:" + strconv.FormatUint(uid, 10)
}

// TokenHandler serves the token-balance query and the stubbed purchase
// flow.  The ledger is the source of truth; Redis only shortcuts
// repeated reads.
type TokenHandler struct {
	Ledger *repository.LedgerRepo
	Redis  *redis.Client // nil disables caching
}

func NewTokenHandler(l *repository.LedgerRepo, rdb *redis.Client) *TokenHandler {
	if l == nil {
		panic("nil ledger passed to NewTokenHandler")
	}
	return &TokenHandler{Ledger: l, Redis: rdb}
}

// Balance handles GET /v1/tokens/balance with a read-through cache.
func (h *TokenHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, balanceCacheKey(uid)).Result(); err == nil {
			if n, convErr := strconv.Atoi(s); convErr == nil {
				return c.JSON(http.StatusOK, echo.Map{"balance": n})
			}
		}
	}

	bal, err := h.Ledger.Balance(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "balance query failed"})
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, balanceCacheKey(uid), strconv.Itoa(bal), balanceCacheTTL).Err()
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": bal})
}

// Purchase handles POST /v1/tokens/purchase.  Payment processing is a
// stub: the chosen package is credited to the ledger directly and the
// new balance is returned.
func (h *TokenHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body struct {
		PackageID string `json:"package_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	pkg := model.PackageByID(body.PackageID)
	if pkg == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown package"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Credit(ctx, uid, pkg.Tokens, repository.ReasonPurchase, pkg.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "credit failed"})
	}
	if h.Redis != nil {
		_ = h.Redis.Del(ctx, balanceCacheKey(uid)).Err()
	}

	bal, err := h.Ledger.Balance(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "balance query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"balance": bal,
		"granted": pkg.Tokens,
		"message": fmt.Sprintf("purchased %d tokens for $%d", pkg.Tokens, pkg.PriceUSD),
	})
}
