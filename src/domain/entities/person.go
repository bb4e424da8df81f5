package entities

// Person is the primitive, project-agnostic representation of a person.
type Person struct {
	Metadata
	Names     []string `json:"names,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	BirthDate Datable  `json:"birthDate,omitempty"`
	DeathDate Datable  `json:"deathDate,omitempty"`
	Links     []string `json:"links,omitempty"`
}

func (*Person) Kind() Kind {
	return KindPerson
}

// EMWPerson is the "emw" project variation of Person. Adding it writes the
// variation label and fields onto a duplicate of the primitive's latest
// node, so one latest node carries both labels and a shared revision.
type EMWPerson struct {
	Person
	Bibliography []string `json:"bibliography,omitempty"`
	Residence    string   `json:"residence,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

func (*EMWPerson) Kind() Kind {
	return KindEMWPerson
}
