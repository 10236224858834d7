package handler

// ValidityResponse is the body of GET /credentials/validity.
type ValidityResponse struct {
	Valid bool `json:"valid"`
}
