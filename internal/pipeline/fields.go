package pipeline

// FieldReadingMaterials is the list-valued field handled specially by the
// cross-reference stage and the CSV exporter.
const FieldReadingMaterials = "reading_materials"

var fieldCatalog = []MetadataField{
	{ID: "year", Label: "Year", Description: "Academic year"},
	{ID: "semester", Label: "Semester", Description: "Academic semester"},
	{ID: "class_name", Label: "Class Name", Description: "Course title"},
	{ID: "class_number", Label: "Class Number", Description: "Course code"},
	{ID: "instructor", Label: "Instructor", Description: "Course instructor"},
	{ID: "university", Label: "University", Description: "Institution name"},
	{ID: "main_topic", Label: "Main Topic", Description: "Course subject/topic"},
	{ID: FieldReadingMaterials, Label: "Reading Materials", Description: "Required and suggested readings"},
}

// Fields returns the static metadata field catalog.
func Fields() []MetadataField {
	out := make([]MetadataField, len(fieldCatalog))
	copy(out, fieldCatalog)
	return out
}

// KnownField reports whether id names a catalog field.
func KnownField(id string) bool {
	for _, f := range fieldCatalog {
		if f.ID == id {
			return true
		}
	}
	return false
}
