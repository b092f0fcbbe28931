package model

// Measurements maps channel ids to their measured points, the unit of
// transfer between client and server.
type Measurements map[ChannelID][]Point

// Clone returns a deep copy. Recipients receive their own copy of each
// batch so a misbehaving sink cannot corrupt its siblings' view.
func (m Measurements) Clone() Measurements {
	out := make(Measurements, len(m))
	for ch, points := range m {
		out[ch] = append([]Point(nil), points...)
	}
	return out
}

// Total returns the number of points across all channels.
func (m Measurements) Total() int {
	n := 0
	for _, points := range m {
		n += len(points)
	}
	return n
}

// MergeGroups combines measurement maps by concatenating point lists on
// key collisions. The input maps are consumed.
func MergeGroups[M ~map[K][]Point, K comparable](groups ...M) M {
	accum := make(M)
	for _, group := range groups {
		for ch, points := range group {
			accum[ch] = append(accum[ch], points...)
		}
	}
	return accum
}

// ProvideRequest is the sole request body posted by the client.
type ProvideRequest struct {
	Measurements Measurements `json:"measurements"`
}
