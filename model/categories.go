package model

// Category lists shown by the control surface.

// MusicCategory groups subcategories under one heading.
type MusicCategory struct {
	Name          string
	Subcategories []string
}

// MusicCategories is ordered as presented.
var MusicCategories = []MusicCategory{
	{Name: "General", Subcategories: []string{"General"}},
	{Name: "Acción", Subcategories: []string{"Combate", "Persecución", "Clímax", "Asedio"}},
	{Name: "Cotidiano", Subcategories: []string{"Hoguera", "Taberna", "Viaje", "Mercado"}},
	{Name: "Misterio", Subcategories: []string{"Investigación", "Sigilo", "Conspiración", "Descubrimiento"}},
	{Name: "Terror", Subcategories: []string{"Misterio", "Horror", "Tensión", "Encuentro Sobrenatural"}},
	{Name: "Exploración", Subcategories: []string{"Bosque", "Ruinas", "Mar", "Desierto", "Montañas"}},
	{Name: "Drama", Subcategories: []string{"Intriga", "Ceremonia", "Duelo", "Revelación"}},
	{Name: "Ambiental", Subcategories: []string{"Lluvia", "Viento", "Fuego", "Naturaleza"}},
}

// SFXCategories is ordered as presented.
var SFXCategories = []string{"Combate", "Social", "Entorno", "Misterio", "Magia", "Tecnología"}

// Contexts known out of the box; tracks may carry any other tag.
var Contexts = []string{"Fantasy", "Futurista", "Grim Dark"}
