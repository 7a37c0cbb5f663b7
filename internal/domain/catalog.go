package domain

// Category groups titles by kind (books, films, music).
type Category struct {
	ID   int64  `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Genre is a tag attached to titles.
type Genre struct {
	ID   int64  `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Title is a catalog entry that can be reviewed. Rating is derived from the
// title's reviews at read time and is nil when there are none.
type Title struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	Category    *Category `json:"category"`
	Genres      []Genre   `json:"genre"`
	Rating      *float64  `json:"rating"`
}

// CategoryRequest creates a category or a genre.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"required,max=50,slug"`
}

// TitleRequest creates or partially updates a title. Category and Genre
// reference existing records by slug.
type TitleRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=256"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Genre       *[]string `json:"genre"`
}

// TitleFilter narrows a title listing.
type TitleFilter struct {
	Category string
	Genre    string
	Name     string
	Year     int
}
