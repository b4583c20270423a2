// Package functions holds the local functions the demo conversations expose
// to the model.
package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PauloHFS/otel-chat-tools/internal/tools"
)

const (
	GetWeather     = "get_weather"
	GetTemperature = "get_temperature"
	GetFlightInfo  = "get_flight_info"
)

var ErrUnknownFunction = errors.New("unknown function")

type CityArgs struct {
	City string `json:"city" validate:"required"`
}

type FlightArgs struct {
	OriginCity      string `json:"origin_city" validate:"required"`
	DestinationCity string `json:"destination_city" validate:"required"`
}

const (
	flightFound    = `{"airline": "Delta", "flight_number": "DL123", "flight_date": "May 7th, 2024", "flight_time": "10:00AM"}`
	flightNotFound = `{"error": "No flights found between the cities"}`
)

func Weather(_ context.Context, args CityArgs) (string, error) {
	switch {
	case strings.EqualFold(args.City, "Seattle"):
		return "Nice weather", nil
	case strings.EqualFold(args.City, "New York City"):
		return "Good weather", nil
	default:
		return tools.Unavailable, nil
	}
}

func Temperature(_ context.Context, args CityArgs) (string, error) {
	switch {
	case strings.EqualFold(args.City, "Seattle"):
		return "75", nil
	case strings.EqualFold(args.City, "New York City"):
		return "80", nil
	default:
		return tools.Unavailable, nil
	}
}

// FlightInfo answers with a JSON document; a missing route is reported in
// the document rather than as an error.
func FlightInfo(_ context.Context, args FlightArgs) (string, error) {
	if strings.EqualFold(args.OriginCity, "Seattle") && strings.EqualFold(args.DestinationCity, "Miami") {
		return flightFound, nil
	}
	return flightNotFound, nil
}

func RegisterWeather(c *tools.Catalog) error {
	return c.Register(GetWeather,
		"Returns description of the weather in the specified city",
		tools.Object(tools.String("city", "The name of the city for which weather info is requested")),
		tools.Typed(Weather))
}

func RegisterTemperature(c *tools.Catalog) error {
	return c.Register(GetTemperature,
		"Returns the current temperature for the specified city",
		tools.Object(tools.String("city", "The name of the city for which temperature info is requested")),
		tools.Typed(Temperature))
}

func RegisterFlightInfo(c *tools.Catalog) error {
	return c.Register(GetFlightInfo,
		"Returns information about the next flight between two cities. "+
			"This includes the name of the airline, flight number and the date and time of the next flight, in JSON format.",
		tools.Object(
			tools.String("origin_city", "The name of the city where the flight originates"),
			tools.String("destination_city", "The flight destination city"),
		),
		tools.Typed(FlightInfo))
}

var registrars = map[string]func(*tools.Catalog) error{
	GetWeather:     RegisterWeather,
	GetTemperature: RegisterTemperature,
	GetFlightInfo:  RegisterFlightInfo,
}

// Available lists the functions that can be registered by name.
func Available() []string {
	return []string{GetWeather, GetTemperature, GetFlightInfo}
}

// NewCatalog builds a catalog holding the named functions, in order.
func NewCatalog(names ...string) (*tools.Catalog, error) {
	c := tools.NewCatalog()
	for _, name := range names {
		register, ok := registrars[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
		}
		if err := register(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}
