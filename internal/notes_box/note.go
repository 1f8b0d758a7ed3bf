package notes_box

import "time"

type Note struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// Time is the last modification time in unix milliseconds.
	Time int64 `json:"time"`
}

func (n Note) ModifiedAt() time.Time {
	return time.UnixMilli(n.Time)
}

func (n Note) IsEmpty() bool {
	return n.Title == "" && n.Content == ""
}
