// Package pose owns the landmark data model for a single dancer.
//
// Responsibilities: the Landmark, Frame and Sequence types, the fixed
// 33-name landmark vocabulary with its body-part groups and skeleton
// connections, and the gap layout used as input to interpolation.
//
// Dependency rule: pose has no dependencies on other internal packages
// except monitoring. Smoothing, export and source all build on it.
package pose
