// Package bods decodes the BODS SIRI-VM vehicle-monitoring feed (scoped
// to the TFLO operator reference in this pipeline) and maintains the
// cumulative lineRef-to-origin/destination mapping it contributes, the
// one piece of BODS behaviour retained once realtime vehicle tracking
// itself is excluded.
package bods

import (
	"github.com/clbanning/mxj/v2"

	pipelineerrors "github.com/uktransitdata/corpus-pipeline/errors"
	"github.com/uktransitdata/corpus-pipeline/mxjutil"
)

// OriginDestination is one observed origin/destination pair for a
// lineRef.
type OriginDestination struct {
	Origin      string
	Destination string
}

// Mapping is publishedLineName -> lineRef -> observed origin/destination
// pairs, deduplicated and accumulated across runs.
type Mapping map[string]map[string][]OriginDestination

// Merge folds freshly observed activity into m, returning the updated
// mapping. m may be nil, in which case a new mapping is created.
func (m Mapping) Merge(activities []VehicleActivity) Mapping {
	if m == nil {
		m = make(Mapping)
	}
	for _, a := range activities {
		if a.PublishedLineName == "" || a.LineRef == "" {
			continue
		}
		byLineRef, ok := m[a.PublishedLineName]
		if !ok {
			byLineRef = make(map[string][]OriginDestination)
			m[a.PublishedLineName] = byLineRef
		}
		pair := OriginDestination{Origin: a.OriginRef, Destination: a.DestinationRef}
		if !containsPair(byLineRef[a.LineRef], pair) {
			byLineRef[a.LineRef] = append(byLineRef[a.LineRef], pair)
		}
	}
	return m
}

func containsPair(pairs []OriginDestination, p OriginDestination) bool {
	for _, existing := range pairs {
		if existing == p {
			return true
		}
	}
	return false
}

// VehicleActivity is one SIRI-VM MonitoredVehicleJourney, reduced to the
// fields the lineRef mapping needs.
type VehicleActivity struct {
	LineRef           string
	PublishedLineName string
	OriginRef         string
	DestinationRef    string
}

// Parse decodes a SIRI-VM VehicleMonitoringDelivery into its constituent
// VehicleActivity records.
func Parse(data []byte) ([]VehicleActivity, error) {
	root, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "cannot decode SIRI-VM XML").WithCause(err)
	}

	siri, ok := mxjutil.GetMap(map[string]interface{}(root), "Siri")
	if !ok {
		return nil, pipelineerrors.New(pipelineerrors.SchemaViolation, "missing Siri root element")
	}
	delivery, ok := mxjutil.GetMap(siri, "ServiceDelivery")
	if !ok {
		return nil, nil
	}
	vmDelivery, ok := mxjutil.GetMap(delivery, "VehicleMonitoringDelivery")
	if !ok {
		return nil, nil
	}

	var activities []VehicleActivity
	for _, node := range mxjutil.AsList(vmDelivery["VehicleActivity"]) {
		aMap, ok := node.(map[string]interface{})
		if !ok {
			continue
		}
		journey, ok := mxjutil.GetMap(aMap, "MonitoredVehicleJourney")
		if !ok {
			continue
		}
		activities = append(activities, VehicleActivity{
			LineRef:           mxjutil.AsString(journey["LineRef"]),
			PublishedLineName: mxjutil.AsString(journey["PublishedLineName"]),
			OriginRef:         mxjutil.AsString(journey["OriginRef"]),
			DestinationRef:    mxjutil.AsString(journey["DestinationRef"]),
		})
	}
	return activities, nil
}
