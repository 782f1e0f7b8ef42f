package creature

type apiPokemon struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	Sprites apiSprites `json:"sprites"`
}

type apiSprites struct {
	FrontDefault string `json:"front_default"`
	Other        struct {
		OfficialArtwork struct {
			FrontDefault string `json:"front_default"`
		} `json:"official-artwork"`
	} `json:"other"`
}

// imageURL prefers the official artwork over the small sprite
func (s apiSprites) imageURL() string {
	if s.Other.OfficialArtwork.FrontDefault != "" {
		return s.Other.OfficialArtwork.FrontDefault
	}
	return s.FrontDefault
}

type apiSpecies struct {
	Names []struct {
		Name     string `json:"name"`
		Language struct {
			Name string `json:"name"`
		} `json:"language"`
	} `json:"names"`
}

func (s apiSpecies) localizedName(lang string) string {
	for _, n := range s.Names {
		if n.Language.Name == lang {
			return n.Name
		}
	}
	return ""
}
