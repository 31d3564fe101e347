package studio

import "strings"

type AspectRatio string

const (
	AspectSquare   AspectRatio = "1:1"
	AspectStory    AspectRatio = "9:16"
	AspectClassic  AspectRatio = "4:3"
	AspectWide     AspectRatio = "16:9"
	AspectPortrait AspectRatio = "3:4"
)

func (a AspectRatio) Valid() bool {
	switch a {
	case AspectSquare, AspectStory, AspectClassic, AspectWide, AspectPortrait:
		return true
	}
	return false
}

// Template is one of the fixed creative briefs a session renders.
type Template struct {
	ID          string
	Title       string
	Description string
	AspectRatio AspectRatio
	Prompt      string
}

var templates = []Template{
	{
		ID:          "node1",
		Title:       "Estudio Fondo Blanco",
		Description: "Iluminación profesional tipo estudio con cámaras de alta gama y fondo blanco puro.",
		AspectRatio: AspectSquare,
		Prompt:      "Genera una fotografía de estudio profesional de este producto. Usa iluminación de alta gama, enfoque nítido y un fondo blanco puro sólido. El producto debe ser el protagonista. Mantén la apariencia original del producto.",
	},
	{
		ID:          "node2",
		Title:       "Recorte de Producto",
		Description: "Analiza el producto y genera una imagen limpia con fondo neutro/transparente para catálogo.",
		AspectRatio: AspectSquare,
		Prompt:      "Genera un recorte limpio del producto sobre un fondo transparente o blanco puro perfecto. El producto debe verse como un recurso de alta calidad para un catálogo web, con bordes definidos y limpios.",
	},
	{
		ID:          "node3",
		Title:       "Historia Instagram (9:16)",
		Description: "Contexto realista y minimalista (ej: cafetería de lujo) con iluminación cinematográfica. Sin texto.",
		AspectRatio: AspectStory,
		Prompt:      "Analiza el producto y su contexto. Colócalo en un ambiente realista, minimalista y de lujo. Iluminación cinematográfica profesional. Sin texto. Formato vertical 9:16.",
	},
	{
		ID:          "node4",
		Title:       "Post Cuadrado (1:1)",
		Description: "Mismo contexto profesional pero en formato cuadrado 1:1 para el feed de Instagram.",
		AspectRatio: AspectSquare,
		Prompt:      "Coloca el producto en el mismo ambiente profesional y minimalista anterior pero en formato cuadrado 1:1. Estilo de fotografía de estilo de vida de alta gama.",
	},
	{
		ID:          "node5",
		Title:       "Anuncio con Gancho",
		Description: "Escena de estilo de vida con título y subtítulo gancho persuasivo en ESPAÑOL.",
		AspectRatio: AspectStory,
		Prompt:      "Crea un anuncio de marketing vertical para este producto en un entorno aspiracional. Superpón un título elegante y un subtítulo gancho persuasivo, AMBOS EN ESPAÑOL, que inviten a la compra. El texto debe ser legible y estético. Formato 9:16.",
	},
	{
		ID:          "node6",
		Title:       "Marketing Creativo",
		Description: "Imagen artística de alto impacto diseñada específicamente para ventas y marketing.",
		AspectRatio: AspectStory,
		Prompt:      "Genera una imagen de marketing altamente creativa, dinámica y artística para este producto. Usa ángulos interesantes y una estética moderna enfocada en el deseo y la conversión de ventas. Formato vertical 9:16.",
	},
}

func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

func LookupTemplate(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// ResolveNodeID accepts "node3", "NODE3" or just "3".
func ResolveNodeID(ref string) (string, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", false
	}
	if !strings.HasPrefix(ref, "node") {
		ref = "node" + ref
	}
	if _, ok := LookupTemplate(ref); !ok {
		return "", false
	}
	return ref, true
}
