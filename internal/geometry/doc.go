// Package geometry holds the coordinate math shared by the editor and the
// exporter.
//
// # Spaces
//
// Three coordinate spaces exist and each has its own point type so they can
// not be mixed by accident:
//
//   - PlanPoint: the floor-plan image, in image pixels. Physical distances are
//     derived through the plan's pixels-per-meter factor.
//   - ViewPoint: the interactive viewport after pan and zoom.
//   - PagePoint: the fixed export page, in PDF points with the origin at the
//     top-left corner and y growing downwards.
//
// Converting between spaces is always explicit: ViewTransform maps plan and
// view space in both directions, PageTransform maps plan space onto a page and
// is produced by FitToPage.
//
// The package performs no I/O.
package geometry
