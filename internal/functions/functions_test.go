package functions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/PauloHFS/otel-chat-tools/internal/llm"
	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

func TestWeatherAndTemperature(t *testing.T) {
	tests := []struct {
		city        string
		weather     string
		temperature string
	}{
		{"Seattle", "Nice weather", "75"},
		{"seattle", "Nice weather", "75"},
		{"New York City", "Good weather", "80"},
		{"Atlantis", tools.Unavailable, tools.Unavailable},
		{"", tools.Unavailable, tools.Unavailable},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			if got, _ := Weather(ctx, CityArgs{City: tt.city}); got != tt.weather {
				t.Errorf("Weather(%q) = %q, want %q", tt.city, got, tt.weather)
			}
			if got, _ := Temperature(ctx, CityArgs{City: tt.city}); got != tt.temperature {
				t.Errorf("Temperature(%q) = %q, want %q", tt.city, got, tt.temperature)
			}
		})
	}
}

func TestFlightInfo(t *testing.T) {
	ctx := context.Background()

	got, err := FlightInfo(ctx, FlightArgs{OriginCity: "Seattle", DestinationCity: "Miami"})
	if err != nil {
		t.Fatal(err)
	}
	var flight map[string]string
	if err := json.Unmarshal([]byte(got), &flight); err != nil {
		t.Fatalf("expected JSON result, got %q", got)
	}
	if flight["airline"] != "Delta" || flight["flight_number"] != "DL123" ||
		flight["flight_date"] != "May 7th, 2024" || flight["flight_time"] != "10:00AM" {
		t.Errorf("unexpected flight %v", flight)
	}

	got, _ = FlightInfo(ctx, FlightArgs{OriginCity: "Miami", DestinationCity: "Seattle"})
	if got != `{"error": "No flights found between the cities"}` {
		t.Errorf("unexpected result for unknown route: %q", got)
	}
}

func TestFlightArgs_JSON(t *testing.T) {
	data, err := json.Marshal(FlightArgs{OriginCity: "Seattle", DestinationCity: "Miami"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"origin_city":"Seattle","destination_city":"Miami"}` {
		t.Errorf("unexpected serialization %s", data)
	}
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(GetWeather, GetTemperature)
	if err != nil {
		t.Fatal(err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != GetWeather || names[1] != GetTemperature {
		t.Errorf("unexpected names %v", names)
	}

	def := c.Definitions()[0]
	schema, err := tools.ParseSchema(def.Parameters)
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "city" {
		t.Errorf("unexpected required list %v", schema.Required)
	}
	if schema.Properties["city"].Description != "The name of the city for which weather info is requested" {
		t.Errorf("unexpected description %q", schema.Properties["city"].Description)
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	if _, err := NewCatalog("get_humidity"); !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
	if _, err := NewCatalog(GetWeather, GetWeather); !errors.Is(err, tools.ErrDuplicateToolName) {
		t.Errorf("expected ErrDuplicateToolName, got %v", err)
	}
}

func TestDispatchFlightInfo(t *testing.T) {
	c, err := NewCatalog(Available()...)
	if err != nil {
		t.Fatal(err)
	}
	d := tools.NewDispatcher(c)

	call := llm.ToolCall{
		ID:       "call_flight",
		Type:     "function",
		Function: llm.Function{Name: GetFlightInfo, Arguments: `{"origin_city":"Seattle","destination_city":"Miami"}`},
	}
	msg, err := d.Invoke(context.Background(), call)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ToolCallID != "call_flight" || msg.Content != flightFound {
		t.Errorf("unexpected message %+v", msg)
	}

	call.Function.Arguments = `{"origin_city":"Seattle"}`
	if _, err := d.Invoke(context.Background(), call); !errors.Is(err, tools.ErrArgumentParse) {
		t.Errorf("expected ErrArgumentParse for missing destination, got %v", err)
	}
}
