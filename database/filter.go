package database

import "outbreak-dashboard/models"

// geoFilterClause renders an optional geography filter as AND-clauses on the
// reports table. An unset field matches all reports; a set field matches by
// exact string equality. Never partially applied: every set field is rendered.
func geoFilterClause(f *models.GeoFilter) (string, []interface{}) {
	if f.IsZero() {
		return "", nil
	}

	clause := ""
	args := make([]interface{}, 0, 3)
	if f.Country != nil {
		clause += " AND country = ?"
		args = append(args, *f.Country)
	}
	if f.State != nil {
		clause += " AND state = ?"
		args = append(args, *f.State)
	}
	if f.District != nil {
		clause += " AND district = ?"
		args = append(args, *f.District)
	}
	return clause, args
}
