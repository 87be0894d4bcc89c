package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"googlemaps.github.io/maps"
)

const nearbyFixture = `{
  "status": "OK",
  "results": [
    {
      "place_id": "ChIJ-blueFROG",
      "name": "Blue Frog",
      "vicinity": "Lower Parel, Mumbai",
      "types": ["night_club", "bar"],
      "rating": 4.4,
      "user_ratings_total": 2310,
      "business_status": "OPERATIONAL",
      "geometry": {"location": {"lat": 19.0003, "lng": 72.8258}}
    }
  ]
}`

func TestPlacesNearbyVenues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "night_club" {
			t.Errorf("unexpected type %q", r.URL.Query().Get("type"))
		}
		if r.URL.Query().Get("radius") != "25000" {
			t.Errorf("unexpected radius %q", r.URL.Query().Get("radius"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(nearbyFixture))
	}))
	defer server.Close()

	client, err := NewPlacesClient("test-key", maps.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPlacesClient failed: %v", err)
	}
	venues, err := client.NearbyVenues(context.Background(), 19.076, 72.8777, 25000, "night_club")
	if err != nil {
		t.Fatalf("NearbyVenues failed: %v", err)
	}
	if len(venues) != 1 {
		t.Fatalf("expected 1 venue, got %d", len(venues))
	}
	v := venues[0]
	if v.Name != "Blue Frog" || v.Address != "Lower Parel, Mumbai" || v.BusinessStatus != "OPERATIONAL" {
		t.Errorf("unexpected venue %+v", v)
	}
	if v.UserRatingsTotal != 2310 || v.Latitude != 19.0003 {
		t.Errorf("unexpected venue details %+v", v)
	}
}

func TestPlacesNearbyVenuesDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "results": []}`))
	}))
	defer server.Close()

	client, err := NewPlacesClient("bad-key", maps.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPlacesClient failed: %v", err)
	}
	if _, err := client.NearbyVenues(context.Background(), 19.076, 72.8777, 25000, "night_club"); err == nil {
		t.Error("expected an error for a denied request")
	}
}
