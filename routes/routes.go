// Package routes implements the Route Reconstructor: building the
// ordered stop-to-stop path (and, where available, track geometry) for
// every JourneyPattern of a Service. TransXChange documents describe a
// route two different ways — an explicit Route/RouteSection/RouteLink
// chain, or (when Routes are omitted) only the JourneyPattern's own
// JourneyPatternSectionRefs — and this package implements both.
package routes

import "github.com/uktransitdata/corpus-pipeline/model"

// Reconstruct builds one model.Route per JourneyPattern of svc, using
// the Routes-present path when the pattern's RouteRef resolves and
// falling back to deriving the path from JourneyPatternSections
// otherwise.
func Reconstruct(doc *model.Document, svc *model.Service) []model.Route {
	routes := make([]model.Route, 0, len(svc.JourneyPatterns))
	for i := range svc.JourneyPatterns {
		jp := &svc.JourneyPatterns[i]
		routes = append(routes, reconstructOne(doc, jp))
	}
	return routes
}

func reconstructOne(doc *model.Document, jp *model.JourneyPattern) model.Route {
	if jp.RouteRef != "" {
		if rd, ok := doc.RouteDefinitionByID(jp.RouteRef); ok {
			if route, ok := fromRouteDefinition(doc, jp, rd); ok {
				return route
			}
		}
	}
	return fromJourneyPatternSections(doc, jp)
}

// fromRouteDefinition walks RouteSectionRef -> RouteSection -> RouteLink,
// concatenating links in declaration order. It returns ok=false if any
// referenced RouteSection is missing, signalling the caller to fall back.
func fromRouteDefinition(doc *model.Document, jp *model.JourneyPattern, rd *model.RouteDefinition) (model.Route, bool) {
	var links []model.RouteLink
	for _, ref := range rd.RouteSectionRefs {
		section, ok := doc.RouteSectionByID(ref)
		if !ok {
			return model.Route{}, false
		}
		links = append(links, section.Links...)
	}
	if len(links) == 0 {
		return model.Route{}, false
	}

	stops := make([]string, 0, len(links)+1)
	linkIDs := make([]string, 0, len(links))
	distance := make([]int, 0, len(links))
	direction := make([]string, 0, len(links))
	var track []model.TrackPoint
	for _, link := range links {
		stops = append(stops, link.FromStop)
		linkIDs = append(linkIDs, link.ID)
		distance = append(distance, link.Distance)
		direction = append(direction, link.Direction)
		track = append(track, link.Track...)
	}
	stops = append(stops, links[len(links)-1].ToStop)

	return model.Route{
		JourneyPatternID: jp.ID,
		RouteLinkIDs:     linkIDs,
		Description:      rd.Description,
		Stops:            stops,
		Distance:         distance,
		Direction:        direction,
		Track:            track,
	}, true
}

// fromJourneyPatternSections derives the path directly from the
// JourneyPattern's own timing links when no usable Route exists.
func fromJourneyPatternSections(doc *model.Document, jp *model.JourneyPattern) model.Route {
	var links []model.JourneyPatternTimingLink
	for _, ref := range jp.JourneyPatternSectionRefs {
		section, ok := doc.JourneyPatternSectionByID(ref)
		if !ok {
			continue
		}
		links = append(links, section.JourneyPatternTimingLinks...)
	}
	if len(links) == 0 {
		return model.Route{JourneyPatternID: jp.ID}
	}

	stops := make([]string, 0, len(links)+1)
	for _, link := range links {
		stops = append(stops, link.FromStopRef)
	}
	stops = append(stops, links[len(links)-1].ToStopRef)

	return model.Route{
		JourneyPatternID: jp.ID,
		Stops:            stops,
	}
}
