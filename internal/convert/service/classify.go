package service

import (
	"github.com/greendigit/cnr-ingest/internal/convert/domain"
)

var (
	networkMarkers = []string{"amountofdatatransferred", "networktype", "measurementtype", "destinationexecunitid"}
	cloudMarkers   = []string{"cloudtype", "cloudcomputeservice", "cpuduration_s", "suspendduration_s"}
)

// detectPayloadType applies the ordered classification heuristics: a nested
// network-detail object wins, then network markers, then cloud markers, with
// grid as the fallback for legacy/minimal payloads.
func detectPayloadType(entry map[string]any, idx keyIndex) domain.PayloadType {
	if v, _ := lookup(entry, idx, "detail_network"); v != nil {
		return domain.PayloadNetwork
	}
	for _, m := range networkMarkers {
		if v, _ := lookup(entry, idx, m); v != nil {
			return domain.PayloadNetwork
		}
	}
	for _, m := range cloudMarkers {
		if v, _ := lookup(entry, idx, m); v != nil {
			return domain.PayloadCloud
		}
	}
	return domain.PayloadGrid
}
