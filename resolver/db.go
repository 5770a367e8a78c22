package resolver

import "path/filepath"

// GetByID looks up a visual by its internal ID, returning
// ErrVisualNotFound if db has no such visual.
func (db *Database) GetByID(id string) (*VisualAsset, error) {
	v, ok := db.VisualsByID[id]
	if !ok {
		return nil, ErrVisualNotFound
	}
	return v, nil
}

// GetByVisualName looks up a visual by its exact human-readable name.
func (db *Database) GetByVisualName(name string) *VisualAsset {
	id, ok := db.VisualsByName[name]
	if !ok {
		return nil
	}
	return db.VisualsByID[id]
}

// VisualsForGR2 returns every visual that references gr2Name's GR2
// file, trying an exact match against the indexed key first and falling
// back to the bare filename.
func (db *Database) VisualsForGR2(gr2Name string) []*VisualAsset {
	ids, ok := db.VisualsByGR2[gr2Name]
	if !ok {
		ids, ok = db.VisualsByGR2[filepath.Base(gr2Name)]
		if !ok {
			return nil
		}
	}
	out := make([]*VisualAsset, 0, len(ids))
	for _, id := range ids {
		if v, ok := db.VisualsByID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// VisualNames returns every indexed visual name.
func (db *Database) VisualNames() []string {
	out := make([]string, 0, len(db.VisualsByName))
	for name := range db.VisualsByName {
		out = append(out, name)
	}
	return out
}

// GR2Files returns every GR2 filename with at least one indexed visual.
func (db *Database) GR2Files() []string {
	out := make([]string, 0, len(db.VisualsByGR2))
	for name := range db.VisualsByGR2 {
		out = append(out, name)
	}
	return out
}

// Stats reports count statistics, including how many references
// ResolveReferences has been unable to resolve so far.
func (db *Database) Stats() Stats {
	return Stats{
		VisualCount:         len(db.VisualsByID),
		MaterialCount:       len(db.Materials),
		TextureCount:        len(db.Textures),
		VirtualTextureCount: len(db.VirtualTextures),
		DanglingReferences:  db.danglingReferences,
	}
}

// ImportMaterialsFrom copies materials, textures, and virtual textures
// from other into db, skipping any id db already has. Used when one
// database's visuals reference materials defined in another.
func (db *Database) ImportMaterialsFrom(other *Database) {
	for id, m := range other.Materials {
		if _, exists := db.Materials[id]; !exists {
			copied := *m
			db.Materials[id] = &copied
		}
	}
	for id, t := range other.Textures {
		if _, exists := db.Textures[id]; !exists {
			copied := *t
			db.Textures[id] = &copied
		}
	}
	for id, vt := range other.VirtualTextures {
		if _, exists := db.VirtualTextures[id]; !exists {
			copied := *vt
			db.VirtualTextures[id] = &copied
		}
	}
}

// Merge absorbs every visual, material, and texture from other into db,
// overwriting db's entries on id collision. Combines multiple source
// documents into one catalog, as opposed to ImportMaterialsFrom's
// fill-gaps semantics.
func (db *Database) Merge(other *Database) {
	for id, v := range other.VisualsByID {
		db.VisualsByID[id] = v
	}
	for name, id := range other.VisualsByName {
		db.VisualsByName[name] = id
	}
	for gr2, ids := range other.VisualsByGR2 {
		db.VisualsByGR2[gr2] = append(db.VisualsByGR2[gr2], ids...)
	}
	for id, m := range other.Materials {
		db.Materials[id] = m
	}
	for id, t := range other.Textures {
		db.Textures[id] = t
	}
	for id, vt := range other.VirtualTextures {
		db.VirtualTextures[id] = vt
	}
}

// ResolveReferences recomputes every visual's Textures/VirtualTextures
// slices from its MaterialIDs against the current Materials/Textures/
// VirtualTextures tables. Call this after ingesting new banks or after
// ImportMaterialsFrom/Merge change what a visual's materials resolve
// to. Every MaterialID, TextureID, or VirtualTextureID that fails to
// resolve against the current tables increments db.danglingReferences
// (visible through Stats) instead of failing the call outright, since a
// partially-ingested database is a normal intermediate state.
func (db *Database) ResolveReferences() {
	for _, visual := range db.VisualsByID {
		var resolvedTextures []TextureRef
		var resolvedVTs []VirtualTextureRef
		seenTex := map[string]bool{}
		seenVT := map[string]bool{}

		for _, matID := range visual.MaterialIDs {
			material, ok := db.Materials[matID]
			if !ok {
				db.danglingReferences++
				continue
			}
			for _, param := range material.TextureIDs {
				tex, ok := db.Textures[param.TextureID]
				if !ok {
					db.danglingReferences++
					continue
				}
				if seenTex[tex.ID] {
					continue
				}
				ref := *tex
				ref.ParameterName = param.Name
				resolvedTextures = append(resolvedTextures, ref)
				seenTex[tex.ID] = true
			}
			for _, vtID := range material.VirtualTextureIDs {
				vt, ok := db.VirtualTextures[vtID]
				if !ok {
					db.danglingReferences++
					continue
				}
				if seenVT[vt.ID] {
					continue
				}
				resolvedVTs = append(resolvedVTs, *vt)
				seenVT[vt.ID] = true
			}
		}

		visual.Textures = resolvedTextures
		visual.VirtualTextures = resolvedVTs
	}
}
