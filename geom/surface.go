package geom

// Surface is the capability set shared by every concrete shape
// representation (triangular mesh, Bézier patch net). Spec §9: "expose a
// Surface capability set {bounding_box, ray_intersect, nearest_point,
// mass_properties}; pick one of two tagged variants at call sites rather
// than deep class hierarchies."
type Surface interface {
	BoundingBox() BBox
	RayIntersect(r *Ray) bool
	NearestPoint(p Vec3) (Vec3, float64)
	MassProperties() MassProperties
}

// MassProperties bundles the derived scalar/tensor quantities every
// concrete surface must be able to report (spec §4.8/§4.9).
type MassProperties struct {
	Volume      float64
	SurfaceArea float64
	CenterMass  Vec3
	Inertia     Mat3 // symmetric, non-dimensional (rho=1, length=Volume^(1/3))
}
