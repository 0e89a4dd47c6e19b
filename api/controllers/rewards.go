package controllers

import (
	"net/http"

	"github.com/RahulXTmCoding/desi-otaku-backend/api/responses"
	rewardsvc "github.com/RahulXTmCoding/desi-otaku-backend/internal/rewards"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

// RewardBalance returns the caller's redeemable point balance.
func RewardBalance(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"points": balance})
	}
}
