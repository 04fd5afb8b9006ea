package keybox

import (
	"crypto"
	"encoding/json"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SessionKeyID identifies the session signing key in the published key set.
const SessionKeyID = "session"

// KeySet wraps pk into a JWK set that token consumers can verify sessions against.
func KeySet(pk crypto.PublicKey) (jwk.Set, error) {
	key, err := jwk.FromRaw(pk)
	if err != nil {
		return nil, err
	}
	for k, v := range map[string]any{
		jwk.KeyIDKey:     SessionKeyID,
		jwk.AlgorithmKey: jwa.ES256,
		jwk.KeyUsageKey:  jwk.ForSignature,
	} {
		if err := key.Set(k, v); err != nil {
			return nil, err
		}
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return set, nil
}

// KeySetHandler serves the JWK set of pk.
func KeySetHandler(pk crypto.PublicKey) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := KeySet(pk)
		if err != nil {
			http.Error(w, "cannot encode session key: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/jwk-set+json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		json.NewEncoder(w).Encode(set)
	}
}
