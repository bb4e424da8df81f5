package conv

import (
	"archivum/src/domain/entities"
	"archivum/src/graph"
)

var (
	personNames     = PropertyName(entities.KindPerson, "names")
	personGender    = PropertyName(entities.KindPerson, "gender")
	personBirthDate = PropertyName(entities.KindPerson, "birthDate")
	personDeathDate = PropertyName(entities.KindPerson, "deathDate")
	personLinks     = PropertyName(entities.KindPerson, "links")

	emwPersonBibliography = PropertyName(entities.KindEMWPerson, "bibliography")
	emwPersonResidence    = PropertyName(entities.KindEMWPerson, "residence")
	emwPersonNotes        = PropertyName(entities.KindEMWPerson, "notes")
)

type personConverter struct{}

func (personConverter) Kind() entities.Kind {
	return entities.KindPerson
}

func (personConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	p, ok := e.(*entities.Person)
	if !ok {
		return nil, typeMismatch(entities.KindPerson, e)
	}
	props := graph.Properties{}
	putStrings(props, personNames, p.Names)
	putString(props, personGender, p.Gender)
	putString(props, personBirthDate, p.BirthDate.String())
	putString(props, personDeathDate, p.DeathDate.String())
	putStrings(props, personLinks, p.Links)
	return props, nil
}

func (personConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	p, ok := e.(*entities.Person)
	if !ok {
		return typeMismatch(entities.KindPerson, e)
	}
	r := reader{props: props}
	p.Names = r.strings(personNames)
	p.Gender = r.string(personGender)
	p.BirthDate = r.datable(personBirthDate)
	p.DeathDate = r.datable(personDeathDate)
	p.Links = r.strings(personLinks)
	return r.err
}

func (personConverter) FieldNames() []string {
	return []string{personNames, personGender, personBirthDate, personDeathDate, personLinks}
}

// emwPersonConverter writes the inherited person fields under the person
// prefix, so a variation node keeps serving the primitive's view of the
// shared entity.
type emwPersonConverter struct{}

func (emwPersonConverter) Kind() entities.Kind {
	return entities.KindEMWPerson
}

func (emwPersonConverter) ToProperties(e entities.Entity) (graph.Properties, error) {
	p, ok := e.(*entities.EMWPerson)
	if !ok {
		return nil, typeMismatch(entities.KindEMWPerson, e)
	}
	props, err := personConverter{}.ToProperties(&p.Person)
	if err != nil {
		return nil, err
	}
	putStrings(props, emwPersonBibliography, p.Bibliography)
	putString(props, emwPersonResidence, p.Residence)
	putString(props, emwPersonNotes, p.Notes)
	return props, nil
}

func (emwPersonConverter) FromProperties(e entities.Entity, props graph.Properties) error {
	p, ok := e.(*entities.EMWPerson)
	if !ok {
		return typeMismatch(entities.KindEMWPerson, e)
	}
	if err := (personConverter{}).FromProperties(&p.Person, props); err != nil {
		return err
	}
	r := reader{props: props}
	p.Bibliography = r.strings(emwPersonBibliography)
	p.Residence = r.string(emwPersonResidence)
	p.Notes = r.string(emwPersonNotes)
	return r.err
}

func (emwPersonConverter) FieldNames() []string {
	return append(personConverter{}.FieldNames(),
		emwPersonBibliography, emwPersonResidence, emwPersonNotes)
}
