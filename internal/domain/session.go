package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is either text or an inline image.
type Part struct {
	Text  string
	Image *ImageData
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func ImagePart(img ImageData) Part {
	return Part{Image: &img}
}

func (p Part) IsImage() bool {
	return p.Image != nil
}

type Turn struct {
	Role  Role
	Parts []Part
}
