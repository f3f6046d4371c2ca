package state

import (
	"os"

	"github.com/tidechart/tidechart/internal/chart"
)

// SweepResult summarizes what the recovery sweep changed.
type SweepResult struct {
	Orphaned  []string // records deleted because no file exists
	Corrupt   []string // zero-length partials deleted with their records
	Healed    []string // records whose byte counts were repaired
	Completed []string // records cleared because the final file exists
}

// Sweep reconciles resume records against the partial and final files in
// chartDir. It runs once after Load and before the scheduler admits work,
// since stale records would otherwise mislead resume decisions. Running it
// twice on the same layout yields the same record set.
func (s *Store) Sweep(snap *Snapshot, chartDir string) SweepResult {
	var res SweepResult

	for id, rec := range snap.ResumeData {
		partPath := chart.PartPath(chartDir, id, rec.OriginalURL)
		finalPath := chart.FinalPath(chartDir, id, rec.OriginalURL)

		partInfo, partErr := os.Stat(partPath)
		finalInfo, finalErr := os.Stat(finalPath)

		switch {
		case partErr == nil && partInfo.Size() == 0:
			// Zero-length partial is corrupt: drop file and record.
			_ = os.Remove(partPath)
			delete(snap.ResumeData, id)
			res.Corrupt = append(res.Corrupt, id)
			s.log.Warn().Str("chart", id).Msg("removed zero-length partial and its resume record")

		case partErr == nil:
			// The partial file on disk is the source of truth for the
			// downloaded byte count.
			if partInfo.Size() != rec.DownloadedBytes {
				s.log.Debug().Str("chart", id).
					Int64("recorded", rec.DownloadedBytes).
					Int64("actual", partInfo.Size()).
					Msg("healing resume record byte count")
				rec.DownloadedBytes = partInfo.Size()
				snap.ResumeData[id] = rec
				res.Healed = append(res.Healed, id)
			}

		case finalErr == nil && finalInfo.Size() >= rec.DownloadedBytes:
			// Transfer already finished; no re-download needed.
			delete(snap.ResumeData, id)
			res.Completed = append(res.Completed, id)
			s.log.Debug().Str("chart", id).Msg("final file present, clearing resume record")

		case finalErr == nil:
			// Final file smaller than the record claims. Leave the record
			// alone; an explicit resume call decides what to do with it.

		default:
			// Neither partial nor final file exists.
			delete(snap.ResumeData, id)
			res.Orphaned = append(res.Orphaned, id)
			s.log.Debug().Str("chart", id).Msg("deleted orphaned resume record")
		}
	}

	return res
}
