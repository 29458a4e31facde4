package tmdb

// Media is one catalog item as returned by list endpoints. Movies carry
// Title/ReleaseDate, TV shows carry Name/FirstAirDate.
type Media struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type,omitempty"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	ProfilePath  string  `json:"profile_path,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	VoteCount    int     `json:"vote_count,omitempty"`
	Popularity   float64 `json:"popularity,omitempty"`
	GenreIDs     []int   `json:"genre_ids,omitempty"`
}

// DisplayTitle returns the movie title or the show name.
func (m Media) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.Name != "" {
		return m.Name
	}
	return "Untitled"
}

// Date returns the release or first air date.
func (m Media) Date() string {
	if m.ReleaseDate != "" {
		return m.ReleaseDate
	}
	return m.FirstAirDate
}

// Page is a list endpoint response. For paginated endpoints the cached Page
// is the accumulation of every page fetched for one fingerprint.
type Page struct {
	Page         int     `json:"page"`
	Results      []Media `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// HasMore reports whether more pages exist after the last one fetched.
func (p *Page) HasMore() bool {
	return p != nil && p.Page < p.TotalPages
}

// Genre is a named genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Details is the per-id media details payload.
type Details struct {
	Media
	Tagline          string  `json:"tagline,omitempty"`
	Status           string  `json:"status,omitempty"`
	Runtime          int     `json:"runtime,omitempty"`
	EpisodeRunTime   []int   `json:"episode_run_time,omitempty"`
	NumberOfSeasons  int     `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int     `json:"number_of_episodes,omitempty"`
	Genres           []Genre `json:"genres,omitempty"`
	Homepage         string  `json:"homepage,omitempty"`
	Budget           int64   `json:"budget,omitempty"`
	Revenue          int64   `json:"revenue,omitempty"`
}

// CastMember is one credited actor.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
	Order       int    `json:"order"`
}

// CrewMember is one credited crew member.
type CrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job,omitempty"`
	Department  string `json:"department,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// Credits is the cast and crew of one title.
type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Directors returns crew members whose job is Director.
func (c *Credits) Directors() []CrewMember {
	var out []CrewMember
	for _, m := range c.Crew {
		if m.Job == "Director" {
			out = append(out, m)
		}
	}
	return out
}

// Video is a trailer, teaser or clip hosted on a third-party site.
type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// Videos is the videos payload of one title.
type Videos struct {
	ID      int64   `json:"id"`
	Results []Video `json:"results"`
}

// Trailer returns the first official YouTube trailer, then any YouTube
// trailer, then nil.
func (v *Videos) Trailer() *Video {
	var fallback *Video
	for i := range v.Results {
		vid := &v.Results[i]
		if vid.Site != "YouTube" || vid.Type != "Trailer" {
			continue
		}
		if vid.Official {
			return vid
		}
		if fallback == nil {
			fallback = vid
		}
	}
	return fallback
}

// apiConfiguration is the raw /configuration payload.
type apiConfiguration struct {
	Images struct {
		SecureBaseURL string   `json:"secure_base_url"`
		PosterSizes   []string `json:"poster_sizes"`
		BackdropSizes []string `json:"backdrop_sizes"`
		ProfileSizes  []string `json:"profile_sizes"`
	} `json:"images"`
}

// apiError is the upstream error body.
type apiError struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
