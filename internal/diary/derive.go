package diary

// derive builds the transfers and aggregates of a journey from its trips. Walk trips before
// the first vehicle trip are access walks, after the last one egress walks. Two transit trips
// separated only by walk trips form a transfer.
func (j *Journey) derive(nextTransferID func() int64) {
	j.Transfers = j.Transfers[:0]
	s := Summary{}

	first, last := -1, -1
	for i, t := range j.Trips {
		if isVehicleTrip(t) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	for i, t := range j.Trips {
		s.Distance += t.Distance
		switch {
		case first < 0 || i < first:
			s.AccessWalkDistance += t.Distance
			s.AccessWalkTime += t.Duration()
		case i > last:
			s.EgressWalkDistance += t.Distance
			s.EgressWalkTime += t.Duration()
		case isVehicleTrip(t):
			s.InVehicleDistance += t.Distance
			s.InVehicleTime += t.Duration()
		}
	}
	if first >= 0 {
		s.AccessWaitTime = j.Trips[first].Wait()
	}

	prev := -1
	for i, t := range j.Trips {
		if !isVehicleTrip(t) {
			continue
		}
		if prev >= 0 && j.Trips[prev].Transit && t.Transit {
			xfer := &Transfer{
				ID:        nextTransferID(),
				From:      j.Trips[prev],
				To:        t,
				StartTime: j.Trips[prev].EndTime,
				EndTime:   t.StartTime,
				WaitTime:  t.Wait(),
			}
			for _, walk := range j.Trips[prev+1 : i] {
				xfer.WalkDistance += walk.Distance
				xfer.WalkTime += walk.Duration()
			}
			j.Transfers = append(j.Transfers, xfer)
			s.TransferWalkDistance += xfer.WalkDistance
			s.TransferWalkTime += xfer.WalkTime
			s.TransferWaitTime += xfer.WaitTime
		}
		prev = i
	}

	for _, t := range j.Trips {
		if t.Transit {
			if s.FirstBoardingStop == "" {
				s.FirstBoardingStop = t.BoardingStop
			}
			s.LastAlightingStop = t.AlightingStop
		}
	}

	s.MainMode = j.mainMode()
	s.SecondaryMode = j.secondaryMode(s.MainMode)
	j.Summary = s
}

func isVehicleTrip(t *Trip) bool {
	return t.Transit || !IsWalkMode(t.Mode)
}

// mainMode picks the trip mode ranked highest in the mode hierarchy, falling back to the
// mode of the longest trip when no mode is ranked.
func (j *Journey) mainMode() string {
	if len(j.Trips) == 0 {
		return ModeWalk
	}
	if j.HasTransit() {
		return ModePT
	}
	best := j.Trips[0]
	for _, t := range j.Trips[1:] {
		if hierarchyOf(t.Mode) < hierarchyOf(best.Mode) {
			best = t
		}
	}
	if hierarchyOf(best.Mode) == defaultHierarchy {
		for _, t := range j.Trips {
			if t.Distance > best.Distance {
				best = t
			}
		}
		return best.Mode
	}
	if IsPTMode(best.Mode) {
		return ModePT
	}
	if best.Mode == ModeTransitWalk || IsWalkMode(best.Mode) {
		return ModeWalk
	}
	return best.Mode
}

// secondaryMode is the coarse classification used by the national travel survey.
func (j *Journey) secondaryMode(mainMode string) string {
	switch {
	case len(j.Trips) == 0:
		return ModeWalk
	case j.HasTransit() || mainMode == ModePT:
		return ModePT
	case len(j.Trips) == 1 && j.Trips[0].Mode == ModeTransitWalk:
		return ModeWalk
	case len(j.Trips) == 1:
		return j.Trips[0].Mode
	}
	return mainMode
}
